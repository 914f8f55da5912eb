// Package compile turns parameters and parsed binding expressions into
// filter documents.
package compile

import (
	"fmt"
	"strings"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/qfilter/value"
)

// Lookup resolves a parameter key to its raw value.
type Lookup interface {
	Get(key string) (string, bool)
}

// SplitKey splits key at the first separator. hasSuffix is false when the
// key carries no operator suffix.
func SplitKey(key string) (base, suffix string, hasSuffix bool) {
	base, suffix, hasSuffix = strings.Cut(key, mql.Separator)
	return base, suffix, hasSuffix
}

// BaseField returns the part of key before the operator suffix.
func BaseField(key string) string {
	base, _, _ := SplitKey(key)
	return base
}

// Field compiles one key/value pair into a single-field clause.
//
//	price__lte=7.8   -> {price: {$lte: 7.8}}
//	email__regex=a@  -> {email: {$regex: "a@", $options: "i"}}
//	is_verified=true -> {is_verified: true}
func Field(key, raw string) (mql.Document, error) {
	base, suffix, hasSuffix := SplitKey(key)
	if !hasSuffix {
		v, err := value.Infer(raw)
		if err != nil {
			return nil, err
		}
		return mql.Document{key: v}, nil
	}

	sym, ok := mql.Comparison(suffix)
	if !ok {
		return nil, qerrors.OperatorError(fmt.Sprintf("unsupported operator: %s", suffix), key)
	}

	// regex patterns are literal text; never coerce them
	if suffix == mql.RegexSuffix {
		return mql.Document{base: mql.Document{
			mql.OpRegex:   raw,
			mql.OpOptions: "i",
		}}, nil
	}

	v, err := value.Infer(raw)
	if err != nil {
		return nil, err
	}
	return mql.Document{base: mql.Document{sym: v}}, nil
}
