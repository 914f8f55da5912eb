package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nonibytes/qfilter/qfilter"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/store/planner"
	"github.com/nonibytes/qfilter/store/storage"
	"github.com/nonibytes/qfilter/store/storage/sqlbuilder"
)

// Collection is a named set of documents inside a Store
type Collection struct {
	store *Store
	name  string
	log   *slog.Logger
}

func (c *Collection) Name() string { return c.name }

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// encodeDoc normalizes doc the way filter values are normalized, so stored
// dates compare with inferred ones, and returns its JSON encoding.
func encodeDoc(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return nil, qerrors.New(qerrors.ErrDocument, "document cannot be nil")
	}
	norm, err := storage.NormalizeValue(doc)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrDocument, "normalize document", err)
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrDocument, "encode document", err)
	}
	return b, nil
}

func decodeDoc(docJSON []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, qerrors.Wrap(qerrors.ErrDocument, "document json", err)
	}
	if doc == nil {
		return nil, qerrors.New(qerrors.ErrDocument, "document must be a JSON object")
	}
	return doc, nil
}

func (c *Collection) put(ctx context.Context, q queryRower, id string, doc map[string]any, nowMS int64) error {
	if id == "" {
		return qerrors.New(qerrors.ErrDocument, "document id cannot be empty")
	}
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	var itemID int64
	if err := q.QueryRowContext(ctx, c.store.adapter.SQL().UpsertDoc, c.name, id, string(data), nowMS).Scan(&itemID); err != nil {
		return qerrors.Wrap(qerrors.ErrSQL, "upsert document", err)
	}
	c.log.Debug("put document", "id", id, "item_id", itemID)
	return nil
}

// Put inserts or replaces the document stored under id. A replaced document
// keeps its position in insertion order.
func (c *Collection) Put(ctx context.Context, id string, doc map[string]any) error {
	return c.put(ctx, c.store.db, id, doc, c.store.nowMS())
}

// PutJSON is Put for a JSON object
func (c *Collection) PutJSON(ctx context.Context, id string, docJSON []byte) error {
	doc, err := decodeDoc(docJSON)
	if err != nil {
		return err
	}
	return c.Put(ctx, id, doc)
}

// Get retrieves a document by id
func (c *Collection) Get(ctx context.Context, id string) (DocumentView, error) {
	var (
		itemID               int64
		dataJSON             string
		createdAt, updatedAt int64
	)
	err := c.store.db.QueryRowContext(ctx, c.store.adapter.SQL().GetDoc, c.name, id).
		Scan(&itemID, &dataJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentView{}, qerrors.NotFoundError(id)
	}
	if err != nil {
		return DocumentView{}, qerrors.Wrap(qerrors.ErrSQL, "get document", err)
	}
	return DocumentView{
		ID:      id,
		DocJSON: json.RawMessage(dataJSON),
		Meta:    DocMeta{CreatedAtMS: createdAt, UpdatedAtMS: updatedAt},
	}, nil
}

// Delete removes a document by id and reports whether it existed
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	return c.delete(ctx, c.store.db, id)
}

func (c *Collection) delete(ctx context.Context, q queryRower, id string) (bool, error) {
	res, err := q.ExecContext(ctx, c.store.adapter.SQL().DeleteDoc, c.name, id)
	if err != nil {
		return false, qerrors.Wrap(qerrors.ErrSQL, "delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, qerrors.Wrap(qerrors.ErrSQL, "delete document", err)
	}
	return n > 0, nil
}

func (c *Collection) compile(filter mql.Document) (*planner.CompileOutput, *sqlbuilder.Builder, error) {
	b := sqlbuilder.New(c.store.adapter.PlaceholderStyle())
	compiled, err := planner.Compile(filter, c.store.adapter.Dialect(), b)
	if err != nil {
		return nil, nil, err
	}
	return compiled, b, nil
}

func plannerOrder(o Order) (planner.OrderKind, error) {
	switch o {
	case "", OrderInsertion:
		return planner.OrderInsertion, nil
	case OrderRecency:
		return planner.OrderRecency, nil
	}
	return 0, qerrors.New(qerrors.ErrUnsupported, "unknown order: "+string(o))
}

// Find returns one page of the documents matching filter. Pass the
// NextCursor of a page as FindOptions.After to get the following one.
func (c *Collection) Find(ctx context.Context, filter mql.Document, fo FindOptions) (FindResult, error) {
	if fo.Order == "" {
		fo.Order = OrderInsertion
	}
	order, err := plannerOrder(fo.Order)
	if err != nil {
		return FindResult{}, err
	}
	hash, err := hashQuery(c.name, filter, fo.Order)
	if err != nil {
		return FindResult{}, err
	}

	var after *planner.After
	if fo.After != "" {
		pos, err := decodeCursor(fo.After, hash)
		if err != nil {
			return FindResult{}, err
		}
		after = &planner.After{ItemID: pos.ItemID, UpdatedAtMS: pos.UpdatedAtMS}
	}

	compiled, b, err := c.compile(filter)
	if err != nil {
		return FindResult{}, err
	}
	limit := c.store.limit(fo.Limit)
	query := planner.BuildFindSQL(compiled, order, b, c.name, after, limit+1)
	c.log.Debug("find", "sql", query, "args", b.Len())

	rows, err := c.store.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return FindResult{}, qerrors.Wrap(qerrors.ErrSQL, "execute find", err)
	}
	defer rows.Close()

	type found struct {
		view   DocumentView
		itemID int64
	}
	var page []found
	for rows.Next() {
		var (
			f        found
			dataJSON string
		)
		if err := rows.Scan(&f.itemID, &f.view.ID, &dataJSON, &f.view.Meta.CreatedAtMS, &f.view.Meta.UpdatedAtMS); err != nil {
			return FindResult{}, qerrors.Wrap(qerrors.ErrSQL, "scan row", err)
		}
		f.view.DocJSON = json.RawMessage(dataJSON)
		page = append(page, f)
	}
	if err := rows.Err(); err != nil {
		return FindResult{}, qerrors.Wrap(qerrors.ErrSQL, "iterate rows", err)
	}

	res := FindResult{Items: make([]DocumentView, 0, len(page))}
	if len(page) > limit {
		res.HasMore = true
		page = page[:limit]
		last := page[len(page)-1]
		res.NextCursor, err = encodeCursor(cursorPosition{
			ItemID:      last.itemID,
			UpdatedAtMS: last.view.Meta.UpdatedAtMS,
			Hash:        hash,
		})
		if err != nil {
			return FindResult{}, err
		}
	}
	for _, f := range page {
		res.Items = append(res.Items, f.view)
	}
	if fo.Explain {
		res.ExplainSQL = query
		res.ExplainSteps = compiled.ExplainSteps
	}
	return res, nil
}

// FindQuery builds a filter from a URL query string and finds with it. A
// nil builder uses the default options.
func (c *Collection) FindQuery(ctx context.Context, rawQuery string, b *qfilter.Builder, exclude qfilter.FieldLister, fo FindOptions) (FindResult, error) {
	var (
		filter mql.Document
		err    error
	)
	if b == nil {
		filter, err = qfilter.BuildQuery(rawQuery, exclude)
	} else {
		filter, err = b.BuildQuery(rawQuery, exclude)
	}
	if err != nil {
		return FindResult{}, err
	}
	return c.Find(ctx, filter, fo)
}

// Count returns the number of documents matching filter
func (c *Collection) Count(ctx context.Context, filter mql.Document) (int64, error) {
	compiled, b, err := c.compile(filter)
	if err != nil {
		return 0, err
	}
	query := planner.BuildCountSQL(compiled, b, c.name)
	var n int64
	if err := c.store.db.QueryRowContext(ctx, query, b.Args()...).Scan(&n); err != nil {
		return 0, qerrors.Wrap(qerrors.ErrSQL, "count", err)
	}
	return n, nil
}

// DeleteWhere removes the documents matching filter and returns how many
// were removed
func (c *Collection) DeleteWhere(ctx context.Context, filter mql.Document) (int64, error) {
	compiled, b, err := c.compile(filter)
	if err != nil {
		return 0, err
	}
	query := planner.BuildDeleteSQL(compiled, b, c.name)
	c.log.Debug("delete where", "sql", query)

	res, err := c.store.db.ExecContext(ctx, query, b.Args()...)
	if err != nil {
		return 0, qerrors.Wrap(qerrors.ErrSQL, "delete where", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, qerrors.Wrap(qerrors.ErrSQL, "delete where", err)
	}
	return n, nil
}
