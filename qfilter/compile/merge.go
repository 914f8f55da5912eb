package compile

import "github.com/nonibytes/qfilter/qfilter/mql"

// Merge folds a single-field clause into filters and returns filters.
//
// With $and, operator documents on the same field are merged key by key and
// the new clause wins on conflicting operators; a scalar equality is first
// promoted to {$eq: v} so neither side is lost. With $or, the field's value
// becomes {$or: [{field: existing}, clause]}.
func Merge(filters, clause mql.Document, combinator string) mql.Document {
	for base, next := range clause {
		existing, ok := filters[base]
		if !ok {
			filters[base] = next
			continue
		}

		if combinator == mql.OpOr {
			filters[base] = mql.Document{mql.OpOr: []mql.Document{
				{base: existing},
				{base: next},
			}}
			continue
		}

		merged := asOperatorDoc(existing).Clone()
		for op, v := range asOperatorDoc(next) {
			merged[op] = v
		}
		filters[base] = merged
	}
	return filters
}

func asOperatorDoc(v any) mql.Document {
	if mql.IsOperatorDoc(v) {
		return v.(mql.Document)
	}
	return mql.Document{mql.OpEq: v}
}
