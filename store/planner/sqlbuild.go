package planner

import (
	"fmt"
	"strings"

	"github.com/nonibytes/qfilter/store/storage"
)

// OrderKind selects the result order of a find
type OrderKind int

const (
	// OrderInsertion returns documents oldest first by insertion id.
	OrderInsertion OrderKind = iota
	// OrderRecency returns the most recently written documents first.
	OrderRecency
)

// After is the keyset position of the last row of the previous page
type After struct {
	ItemID      int64
	UpdatedAtMS int64
}

func withClause(compiled *CompileOutput) string {
	if len(compiled.CTEs) == 0 {
		return ""
	}
	parts := make([]string, len(compiled.CTEs))
	for i, cte := range compiled.CTEs {
		parts[i] = fmt.Sprintf("%s AS (%s)", cte.Name, cte.SQL)
	}
	return "WITH " + strings.Join(parts, ", ") + "\n"
}

// BuildFindSQL builds the page query. The builder must be the one the
// CTEs were compiled with.
func BuildFindSQL(
	compiled *CompileOutput,
	order OrderKind,
	builder storage.Builder,
	collection string,
	after *After,
	limitPlusOne int,
) string {
	phCollection := builder.Arg(collection)

	var afterWhere, orderClause string
	switch order {
	case OrderRecency:
		if after != nil {
			ph1 := builder.Arg(after.UpdatedAtMS)
			ph2 := builder.Arg(after.UpdatedAtMS)
			ph3 := builder.Arg(after.ItemID)
			afterWhere = fmt.Sprintf(" AND (d.updated_at < %s OR (d.updated_at = %s AND d.id < %s))", ph1, ph2, ph3)
		}
		orderClause = "ORDER BY d.updated_at DESC, d.id DESC"
	default:
		if after != nil {
			afterWhere = fmt.Sprintf(" AND d.id > %s", builder.Arg(after.ItemID))
		}
		orderClause = "ORDER BY d.id ASC"
	}

	return fmt.Sprintf(`%sSELECT d.id, d.doc_id, CAST(d.data_json AS TEXT), d.created_at, d.updated_at
FROM documents d
JOIN %s r ON r.item_id = d.id
WHERE d.collection = %s%s
%s
LIMIT %d`,
		withClause(compiled),
		compiled.ResultCTE,
		phCollection,
		afterWhere,
		orderClause,
		limitPlusOne,
	)
}

// BuildCountSQL counts the matching documents of a collection
func BuildCountSQL(compiled *CompileOutput, builder storage.Builder, collection string) string {
	return fmt.Sprintf(`%sSELECT COUNT(*) FROM documents d
JOIN %s r ON r.item_id = d.id
WHERE d.collection = %s`,
		withClause(compiled),
		compiled.ResultCTE,
		builder.Arg(collection),
	)
}

// BuildDeleteSQL deletes the matching documents of a collection
func BuildDeleteSQL(compiled *CompileOutput, builder storage.Builder, collection string) string {
	return fmt.Sprintf(`%sDELETE FROM documents
WHERE collection = %s AND id IN (SELECT item_id FROM %s)`,
		withClause(compiled),
		builder.Arg(collection),
		compiled.ResultCTE,
	)
}

// BuildFieldsSQL lists (key, type, count) over the top-level members of the
// matching documents of a collection
func BuildFieldsSQL(compiled *CompileOutput, dialect storage.Dialect, builder storage.Builder, collection string) string {
	from, key, typ := dialect.EachField()
	return fmt.Sprintf(`%sSELECT %s, %s, COUNT(*)
FROM documents d
JOIN %s r ON r.item_id = d.id, %s
WHERE d.collection = %s
GROUP BY %s, %s
ORDER BY %s`,
		withClause(compiled),
		key, typ,
		compiled.ResultCTE, from,
		builder.Arg(collection),
		key, typ,
		key,
	)
}

// BuildValuesSQL lists the most frequent JSON values at path among the
// matching documents of a collection
func BuildValuesSQL(compiled *CompileOutput, dialect storage.Dialect, builder storage.Builder, collection string, path []string, top int) string {
	with := withClause(compiled)
	value := dialect.ValueJSON(builder, path)
	phCollection := builder.Arg(collection)
	return fmt.Sprintf(`%sSELECT v, COUNT(*) AS cnt FROM (
  SELECT %s AS v
  FROM documents d
  JOIN %s r ON r.item_id = d.id
  WHERE d.collection = %s
) x
WHERE v IS NOT NULL
GROUP BY v
ORDER BY cnt DESC, v ASC
LIMIT %d`,
		with,
		value,
		compiled.ResultCTE,
		phCollection,
		top,
	)
}

func numbersSubquery(compiled *CompileOutput, dialect storage.Dialect, builder storage.Builder, collection string, path []string) string {
	value := dialect.NumberValue(builder, path)
	return fmt.Sprintf(`SELECT v FROM (
  SELECT %s AS v
  FROM documents d
  JOIN %s r ON r.item_id = d.id
  WHERE d.collection = %s
) x WHERE v IS NOT NULL`,
		value,
		compiled.ResultCTE,
		builder.Arg(collection),
	)
}

// BuildStatsSQL aggregates COUNT, MIN, MAX and AVG over the numeric values
// at path among the matching documents of a collection
func BuildStatsSQL(compiled *CompileOutput, dialect storage.Dialect, builder storage.Builder, collection string, path []string) string {
	with := withClause(compiled)
	return fmt.Sprintf("%sSELECT COUNT(v), MIN(v), MAX(v), AVG(v) FROM (%s) n",
		with, numbersSubquery(compiled, dialect, builder, collection, path))
}

// BuildMedianSQL averages the one or two middle values of the count numeric
// values at path
func BuildMedianSQL(compiled *CompileOutput, dialect storage.Dialect, builder storage.Builder, collection string, path []string, count int64) string {
	with := withClause(compiled)
	return fmt.Sprintf("%sSELECT AVG(v) FROM (%s ORDER BY v LIMIT %d OFFSET %d) m",
		with, numbersSubquery(compiled, dialect, builder, collection, path), 2-count%2, (count-1)/2)
}
