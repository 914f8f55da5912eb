// Package store keeps JSON documents in named collections on SQLite or
// Postgres and executes filter documents against them.
package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/store/storage"
)

// Store represents an open document store
type Store struct {
	adapter storage.Adapter
	db      *sql.DB
	opts    Options
	log     *slog.Logger
}

func newStore(adapter storage.Adapter, db *sql.DB, opts Options) *Store {
	def := DefaultOptions()
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = def.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = def.MaxLimit
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		adapter: adapter,
		db:      db,
		opts:    opts,
		log:     log.With("store", adapter.StoreID()),
	}
}

// Create initializes the tables if needed and opens the store
func Create(ctx context.Context, adapter storage.Adapter, opts Options) (*Store, error) {
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrIO, "connect to database", err)
	}
	if err := adapter.CreateStore(ctx, db); err != nil {
		db.Close()
		return nil, qerrors.Wrap(qerrors.ErrSQL, "create store", err)
	}
	return newStore(adapter, db, opts), nil
}

// Open opens an existing store
func Open(ctx context.Context, adapter storage.Adapter, opts Options) (*Store, error) {
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrIO, "connect to database", err)
	}
	if err := adapter.OpenStore(ctx, db); err != nil {
		db.Close()
		return nil, qerrors.Wrap(qerrors.ErrSQL, "open store", err)
	}
	return newStore(adapter, db, opts), nil
}

// Close closes the store
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return qerrors.Wrap(qerrors.ErrIO, "close database", err)
		}
	}
	return s.adapter.Close()
}

// Collection returns a handle on the named collection. Collections exist
// implicitly once a document is written to them.
func (s *Store) Collection(name string) (*Collection, error) {
	if name == "" {
		return nil, qerrors.New(qerrors.ErrDocument, "collection name cannot be empty")
	}
	return &Collection{store: s, name: name, log: s.log.With("collection", name)}, nil
}

// Collections lists the non-empty collections
func (s *Store) Collections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.adapter.SQL().ListCollections)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "list collections", err)
	}
	defer rows.Close()

	out := make([]CollectionInfo, 0)
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Count); err != nil {
			return nil, qerrors.Wrap(qerrors.ErrSQL, "scan collection", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "list collections", err)
	}
	return out, nil
}

// Adapter returns the underlying storage adapter
func (s *Store) Adapter() storage.Adapter {
	return s.adapter
}

func (s *Store) nowMS() int64 {
	return s.opts.Now().UnixMilli()
}

func (s *Store) limit(requested int) int {
	switch {
	case requested <= 0:
		return s.opts.DefaultLimit
	case requested > s.opts.MaxLimit:
		return s.opts.MaxLimit
	}
	return requested
}
