package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nonibytes/qfilter/store/storage"
)

// Dialect renders conditions with json_extract, json_type and json_each.
// json_type tells integers, reals, text and booleans apart, so every
// comparison is guarded by it to keep JSON types from mixing.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

// operand is a JSON value exposed as a (type, value) pair of SQL
// expressions. Each call renders a fresh expression so '?' placeholders are
// allocated in text order.
type operand struct {
	typ func() string
	val func() string
}

func jsonPath(path []string) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, p := range path {
		sb.WriteString(`."`)
		sb.WriteString(p)
		sb.WriteByte('"')
	}
	return sb.String()
}

func pathOperand(b storage.Builder, path []string) operand {
	p := jsonPath(path)
	return operand{
		typ: func() string { return fmt.Sprintf("json_type(data_json, %s)", b.Arg(p)) },
		val: func() string { return fmt.Sprintf("json_extract(data_json, %s)", b.Arg(p)) },
	}
}

// eachOperand addresses the rows of json_each.
var eachOperand = operand{
	typ: func() string { return "type" },
	val: func() string { return "value" },
}

func typeGuard(v any) (string, bool) {
	switch v.(type) {
	case int64, float64:
		return "IN ('integer','real')", true
	case string:
		return "= 'text'", true
	case bool:
		return "IN ('true','false')", true
	}
	return "", false
}

func eq(b storage.Builder, o operand, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return fmt.Sprintf("(%s IS NULL OR %s = 'null')", o.typ(), o.typ()), nil
	case bool:
		if x {
			return fmt.Sprintf("%s = 'true'", o.typ()), nil
		}
		return fmt.Sprintf("%s = 'false'", o.typ()), nil
	case int64, float64, string:
		guard, _ := typeGuard(v)
		return fmt.Sprintf("(%s %s AND %s = %s)", o.typ(), guard, o.val(), b.Arg(v)), nil
	case []any, map[string]any:
		enc, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		kind := "object"
		if _, ok := x.([]any); ok {
			kind = "array"
		}
		return fmt.Sprintf("(%s = '%s' AND %s = json(%s))", o.typ(), kind, o.val(), b.Arg(string(enc))), nil
	default:
		return "", fmt.Errorf("cannot compare value of type %T", v)
	}
}

func (Dialect) Eq(b storage.Builder, path []string, v any) (string, error) {
	return eq(b, pathOperand(b, path), v)
}

func (Dialect) Compare(b storage.Builder, path []string, op storage.CmpOp, v any) (string, error) {
	o := pathOperand(b, path)
	if v == nil {
		if op == storage.CmpGte || op == storage.CmpLte {
			return eq(b, o, nil)
		}
		return "FALSE", nil
	}
	guard, ok := typeGuard(v)
	if !ok {
		return "", fmt.Errorf("cannot order value of type %T", v)
	}
	if bv, isBool := v.(bool); isBool {
		v = int64(0)
		if bv {
			v = int64(1)
		}
	}
	return fmt.Sprintf("(%s %s AND %s %s %s)", o.typ(), guard, o.val(), op, b.Arg(v)), nil
}

func (Dialect) Exists(b storage.Builder, path []string) string {
	return fmt.Sprintf("%s IS NOT NULL", pathOperand(b, path).typ())
}

func (Dialect) Contains(b storage.Builder, path []string, v any) (string, error) {
	from := b.Arg(jsonPath(path))
	cond, err := eq(b, eachOperand, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(data_json, %s) WHERE %s)", from, cond), nil
}

func (Dialect) Regex(b storage.Builder, path []string, pattern string, caseInsensitive bool) string {
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	o := pathOperand(b, path)
	return fmt.Sprintf("(%s = 'text' AND %s REGEXP %s)", o.typ(), o.val(), b.Arg(pattern))
}

func (Dialect) ValueJSON(b storage.Builder, path []string) string {
	return fmt.Sprintf("(data_json -> %s)", b.Arg(jsonPath(path)))
}

func (Dialect) EachField() (from, key, typ string) {
	return "json_each(d.data_json) AS j", "j.key", "j.type"
}

func (Dialect) NumberValue(b storage.Builder, path []string) string {
	o := pathOperand(b, path)
	return fmt.Sprintf("(CASE WHEN %s IN ('integer','real') THEN %s END)", o.typ(), o.val())
}
