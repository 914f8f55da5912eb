// Package postgres stores documents in a JSONB column inside a dedicated
// schema and renders filter conditions with the jsonb operators.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nonibytes/qfilter/store/storage"
	"github.com/nonibytes/qfilter/store/storage/sqlbuilder"
)

const storeMagic = "qfilter"

type Adapter struct {
	DSN    string
	Schema string // used as dedicated schema via search_path
}

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) StoreID() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) SQL() storage.SQL { return SQLTemplates }

func (a *Adapter) Dialect() storage.Dialect { return Dialect{} }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(ident string) string {
	// ident is validated to contain no quotes
	return `"` + ident + `"`
}

func (a *Adapter) ensureSchema(ctx context.Context, db *sql.DB) error {
	if !schemaNameRe.MatchString(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(a.Schema))
	return err
}

func (a *Adapter) open(ctx context.Context, searchPath bool) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if searchPath {
		if cfg.RuntimeParams == nil {
			cfg.RuntimeParams = make(map[string]string)
		}
		cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect makes sure the schema exists, then returns a pool whose
// search_path is pinned to it.
func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	boot, err := a.open(ctx, false)
	if err != nil {
		return nil, err
	}
	err = a.ensureSchema(ctx, boot)
	_ = boot.Close()
	if err != nil {
		return nil, err
	}
	return a.open(ctx, true)
}

func (a *Adapter) CreateStore(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return err
	}
	sqlt := a.SQL()
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, "qfilter_magic", storeMagic); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, sqlt.SetMeta, "qfilter_version", "1")
	return err
}

func (a *Adapter) OpenStore(ctx context.Context, db *sql.DB) error {
	var magic string
	if err := db.QueryRowContext(ctx, a.SQL().GetMeta, "qfilter_magic").Scan(&magic); err != nil {
		return err
	}
	if magic != storeMagic {
		return fmt.Errorf("not a qfilter store: schema %s", a.Schema)
	}
	return nil
}
