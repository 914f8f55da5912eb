package planner

import (
	"fmt"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/store/storage"
)

// not negates cond treating NULL as false, so a missing field satisfies
// $ne and $nin.
func not(cond string) string {
	return fmt.Sprintf("NOT COALESCE((%s), FALSE)", cond)
}

func normalize(field string, v any) (any, error) {
	n, err := storage.NormalizeValue(v)
	if err != nil {
		return nil, qerrors.UnsupportedError(err.Error(), field)
	}
	return n, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}

// asDoc accepts both mql.Document and decoded JSON objects.
func asDoc(v any) (mql.Document, bool) {
	switch x := v.(type) {
	case mql.Document:
		return x, true
	case map[string]any:
		return mql.Document(x), true
	}
	return nil, false
}

func asDocs(v any) ([]mql.Document, bool) {
	switch x := v.(type) {
	case []mql.Document:
		return x, true
	case []any:
		out := make([]mql.Document, 0, len(x))
		for _, e := range x {
			d, ok := asDoc(e)
			if !ok {
				return nil, false
			}
			out = append(out, d)
		}
		return out, true
	}
	return nil, false
}

func allOperators(d mql.Document) bool {
	if len(d) == 0 {
		return false
	}
	for k := range d {
		if !mql.IsOperatorKey(k) {
			return false
		}
	}
	return true
}
