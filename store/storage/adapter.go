package storage

import (
	"context"
	"database/sql"

	"github.com/nonibytes/qfilter/store/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Adapter abstracts database-specific operations
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	StoreID() string

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error

	// CreateStore creates the tables if missing and stamps the meta table.
	CreateStore(ctx context.Context, db *sql.DB) error
	// OpenStore fails unless db was initialized by CreateStore.
	OpenStore(ctx context.Context, db *sql.DB) error

	SQL() SQL
	Dialect() Dialect
}

// SQL holds prepared SQL templates for common operations
type SQL struct {
	GetMeta string
	SetMeta string

	// UpsertDoc takes (collection, doc_id, data_json, now_ms) and returns id.
	UpsertDoc string
	// GetDoc takes (collection, doc_id).
	GetDoc    string
	DeleteDoc string
	CountDocs string
	// ListCollections returns collection names with their document count.
	ListCollections string
}

// CmpOp is an ordering comparison.
type CmpOp string

const (
	CmpGt  CmpOp = ">"
	CmpGte CmpOp = ">="
	CmpLt  CmpOp = "<"
	CmpLte CmpOp = "<="
)

// Dialect renders boolean SQL conditions over the data_json column of the
// documents table. path is the field name split on '.'. Values have been
// through NormalizeValue.
type Dialect interface {
	// Eq matches documents whose value at path equals v with the same JSON
	// type. A nil v matches a JSON null or a missing path.
	Eq(b Builder, path []string, v any) (string, error)
	// Compare matches values of v's JSON type ordered against v.
	Compare(b Builder, path []string, op CmpOp, v any) (string, error)
	Exists(b Builder, path []string) string
	// Contains matches an array at path holding an element equal to v.
	Contains(b Builder, path []string, v any) (string, error)
	// Regex matches string values against a Go regexp pattern.
	Regex(b Builder, path []string, pattern string, caseInsensitive bool) string

	// ValueJSON renders the JSON text of the value at path, NULL when the
	// path is missing.
	ValueJSON(b Builder, path []string) string
	// NumberValue renders the value at path as a SQL number, NULL unless
	// it is a JSON number.
	NumberValue(b Builder, path []string) string
	// EachField renders a FROM item with one row per top-level member of
	// data_json, plus the key and type expressions of such a row. Types are
	// backend names; see JSONTypeName.
	EachField() (from, key, typ string)
}

// Builder interface for placeholder management
type Builder interface {
	Arg(v any) string
	Args() []any
	Len() int
}
