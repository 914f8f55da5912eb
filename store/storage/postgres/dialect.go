package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/nonibytes/qfilter/store/storage"
)

// Dialect renders conditions over the JSONB data_json column. Paths are
// bound as text[] for #> and #>>; values are bound as JSON text and cast to
// jsonb, whose equality and ordering are type-aware.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func at(b storage.Builder, path []string) string {
	return fmt.Sprintf("(data_json #> %s::text[])", b.Arg(path))
}

func jsonArg(b storage.Builder, v any) (string, error) {
	enc, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return b.Arg(string(enc)) + "::jsonb", nil
}

func (Dialect) Eq(b storage.Builder, path []string, v any) (string, error) {
	if v == nil {
		return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", at(b, path), at(b, path)), nil
	}
	x := at(b, path)
	arg, err := jsonArg(b, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", x, arg), nil
}

func (d Dialect) Compare(b storage.Builder, path []string, op storage.CmpOp, v any) (string, error) {
	kind := storage.JSONType(v)
	switch kind {
	case "null":
		if op == storage.CmpGte || op == storage.CmpLte {
			return d.Eq(b, path, nil)
		}
		return "FALSE", nil
	case "array", "object":
		return "", fmt.Errorf("cannot order value of type %T", v)
	}
	guard := fmt.Sprintf("jsonb_typeof(%s) = '%s'", at(b, path), kind)
	x := at(b, path)
	arg, err := jsonArg(b, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s AND %s %s %s)", guard, x, op, arg), nil
}

func (Dialect) Exists(b storage.Builder, path []string) string {
	return fmt.Sprintf("%s IS NOT NULL", at(b, path))
}

func (Dialect) Contains(b storage.Builder, path []string, v any) (string, error) {
	guard := fmt.Sprintf("jsonb_typeof(%s) = 'array'", at(b, path))
	x := at(b, path)
	arg, err := jsonArg(b, []any{v})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s AND %s @> %s)", guard, x, arg), nil
}

func (Dialect) Regex(b storage.Builder, path []string, pattern string, caseInsensitive bool) string {
	op := "~"
	if caseInsensitive {
		op = "~*"
	}
	guard := fmt.Sprintf("jsonb_typeof(%s) = 'string'", at(b, path))
	return fmt.Sprintf("(%s AND (data_json #>> %s::text[]) %s %s)", guard, b.Arg(path), op, b.Arg(pattern))
}

func (Dialect) ValueJSON(b storage.Builder, path []string) string {
	return at(b, path) + "::text"
}

func (Dialect) EachField() (from, key, typ string) {
	return "jsonb_each(d.data_json) AS j(key, value)", "j.key", "jsonb_typeof(j.value)"
}

func (Dialect) NumberValue(b storage.Builder, path []string) string {
	return fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'number' THEN (data_json #>> %s::text[])::double precision END)",
		at(b, path), b.Arg(path))
}
