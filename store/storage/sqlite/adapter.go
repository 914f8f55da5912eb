// Package sqlite stores documents as JSON text in a SQLite database and
// renders filter conditions with the JSON1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nonibytes/qfilter/store/storage"
	"github.com/nonibytes/qfilter/store/storage/sqlbuilder"
)

// Driver names accepted by NewWithDriver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3_qfilter"
)

const storeMagic = "qfilter"

type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DriverModernc}
}

func NewWithDriver(path, driver string) *Adapter {
	if driver == "" {
		driver = DriverModernc
	}
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) StoreID() string {
	return a.Path
}

func (a *Adapter) dsn() string {
	sep := "?"
	if strings.Contains(a.Path, "?") {
		sep = "&"
	}
	switch a.DriverName {
	case DriverMattn:
		return a.Path + sep + "_busy_timeout=5000&_foreign_keys=on"
	default:
		return a.Path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(a.DriverName, a.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) SQL() storage.SQL {
	return SQLTemplates
}

func (a *Adapter) Dialect() storage.Dialect {
	return Dialect{}
}

func (a *Adapter) CreateStore(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return err
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

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
		return fmt.Errorf("not a qfilter store: %s", a.Path)
	}
	return nil
}
