package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/store/planner"
	"github.com/nonibytes/qfilter/store/storage"
)

// DefaultTopValues is the number of values DiscoverValues returns when top
// is not positive.
const DefaultTopValues = 20

// FieldOverview describes a top-level field of a collection
type FieldOverview struct {
	Field    string           `json:"field"`
	DocCount int64            `json:"doc_count"`
	Types    map[string]int64 `json:"types"` // JSON type -> document count
}

// ValueCount is a JSON value with the number of documents holding it
type ValueCount struct {
	Value json.RawMessage `json:"value"`
	Count int64           `json:"count"`
}

// DiscoverFields lists the top-level fields of the documents matching
// filter, sorted by name. Useful for finding out which query keys make
// sense on a collection.
func (c *Collection) DiscoverFields(ctx context.Context, filter mql.Document) ([]FieldOverview, error) {
	compiled, b, err := c.compile(filter)
	if err != nil {
		return nil, err
	}
	query := planner.BuildFieldsSQL(compiled, c.store.adapter.Dialect(), b, c.name)
	c.log.Debug("discover fields", "sql", query)

	rows, err := c.store.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "discover fields", err)
	}
	defer rows.Close()

	byField := make(map[string]*FieldOverview)
	for rows.Next() {
		var (
			field, typ string
			n          int64
		)
		if err := rows.Scan(&field, &typ, &n); err != nil {
			return nil, qerrors.Wrap(qerrors.ErrSQL, "scan field", err)
		}
		fo, ok := byField[field]
		if !ok {
			fo = &FieldOverview{Field: field, Types: make(map[string]int64)}
			byField[field] = fo
		}
		fo.Types[storage.JSONTypeName(typ)] += n
		fo.DocCount += n
	}
	if err := rows.Err(); err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "discover fields", err)
	}

	out := make([]FieldOverview, 0, len(byField))
	for _, fo := range byField {
		out = append(out, *fo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// DiscoverValues returns the most frequent values of field among the
// documents matching filter. Dotted names address nested fields.
func (c *Collection) DiscoverValues(ctx context.Context, field string, filter mql.Document, top int) ([]ValueCount, error) {
	if field == "" {
		return nil, qerrors.New(qerrors.ErrDocument, "field cannot be empty")
	}
	if top <= 0 {
		top = DefaultTopValues
	}
	compiled, b, err := c.compile(filter)
	if err != nil {
		return nil, err
	}
	query := planner.BuildValuesSQL(compiled, c.store.adapter.Dialect(), b, c.name, strings.Split(field, "."), top)
	c.log.Debug("discover values", "field", field, "sql", query)

	rows, err := c.store.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "discover values", err)
	}
	defer rows.Close()

	out := make([]ValueCount, 0)
	for rows.Next() {
		var (
			raw string
			vc  ValueCount
		)
		if err := rows.Scan(&raw, &vc.Count); err != nil {
			return nil, qerrors.Wrap(qerrors.ErrSQL, "scan value", err)
		}
		vc.Value = json.RawMessage(raw)
		out = append(out, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, qerrors.Wrap(qerrors.ErrSQL, "discover values", err)
	}
	return out, nil
}

// FieldStats summarizes the numeric values of a field. Min, Max, Avg and
// Median are nil when no matching document holds a number there.
type FieldStats struct {
	Field  string   `json:"field"`
	Count  int64    `json:"count"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Avg    *float64 `json:"avg,omitempty"`
	Median *float64 `json:"median,omitempty"`
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Stats computes statistics over the numeric values of field among the
// documents matching filter. Values of other JSON types are ignored.
func (c *Collection) Stats(ctx context.Context, field string, filter mql.Document) (FieldStats, error) {
	if field == "" {
		return FieldStats{}, qerrors.New(qerrors.ErrDocument, "field cannot be empty")
	}
	path := strings.Split(field, ".")
	dialect := c.store.adapter.Dialect()
	res := FieldStats{Field: field}

	compiled, b, err := c.compile(filter)
	if err != nil {
		return FieldStats{}, err
	}
	query := planner.BuildStatsSQL(compiled, dialect, b, c.name, path)
	c.log.Debug("stats", "field", field, "sql", query)

	var minV, maxV, avgV sql.NullFloat64
	if err := c.store.db.QueryRowContext(ctx, query, b.Args()...).Scan(&res.Count, &minV, &maxV, &avgV); err != nil {
		return FieldStats{}, qerrors.Wrap(qerrors.ErrSQL, "stats", err)
	}
	res.Min, res.Max, res.Avg = nullFloat(minV), nullFloat(maxV), nullFloat(avgV)
	if res.Count == 0 {
		return res, nil
	}

	compiled, b, err = c.compile(filter)
	if err != nil {
		return FieldStats{}, err
	}
	query = planner.BuildMedianSQL(compiled, dialect, b, c.name, path, res.Count)
	var median sql.NullFloat64
	if err := c.store.db.QueryRowContext(ctx, query, b.Args()...).Scan(&median); err != nil {
		return FieldStats{}, qerrors.Wrap(qerrors.ErrSQL, "median", err)
	}
	res.Median = nullFloat(median)
	return res, nil
}
