package storage

import (
	"fmt"
	"time"

	"github.com/nonibytes/qfilter/qfilter/mql"
)

// TimeLayout is the fixed-width UTC layout dates are stored and compared in,
// so that lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NormalizeValue maps a filter or document value onto the JSON value it is
// stored as: times become TimeLayout strings, integer kinds int64, float32
// float64. Maps and slices are normalized recursively.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x, nil
	case time.Time:
		return x.UTC().Format(TimeLayout), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := NormalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case mql.Document:
		return NormalizeValue(map[string]any(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := NormalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// JSONType names the JSON type of a normalized value: "null", "boolean",
// "number", "string", "array" or "object".
func JSONType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "object"
	}
}

// JSONTypeName maps a backend JSON type name (json_each or jsonb_typeof) to
// the names JSONType returns.
func JSONTypeName(backendType string) string {
	switch backendType {
	case "integer", "real":
		return "number"
	case "text":
		return "string"
	case "true", "false":
		return "boolean"
	}
	return backendType
}
