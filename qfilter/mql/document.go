// Package mql holds the filter document model and the operator tables that
// map query-string suffixes and binding symbols onto MongoDB query language
// operators.
package mql

// Document is a filter document. Values are scalars, nested Documents,
// []Document operand lists for combinators, or []any for array operands.
type Document map[string]any

// SingleKey returns the only key of d. ok is false when d has zero or more
// than one key.
func (d Document) SingleKey() (key string, ok bool) {
	if len(d) != 1 {
		return "", false
	}
	for k := range d {
		key = k
	}
	return key, true
}

// IsOperatorKey reports whether k names an operator rather than a field.
func IsOperatorKey(k string) bool {
	return len(k) > 0 && k[0] == '$'
}

// IsOperatorDoc reports whether v is a Document whose keys are all
// operators, e.g. {$gt: 1, $lt: 5}.
func IsOperatorDoc(v any) bool {
	d, ok := v.(Document)
	if !ok || len(d) == 0 {
		return false
	}
	for k := range d {
		if !IsOperatorKey(k) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of d. Operand lists and nested documents are
// copied; scalar and []any values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch x := v.(type) {
		case Document:
			out[k] = x.Clone()
		case []Document:
			list := make([]Document, len(x))
			for i, sub := range x {
				list[i] = sub.Clone()
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}
