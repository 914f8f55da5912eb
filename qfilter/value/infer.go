// Package value infers typed values from raw query-string values.
package value

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
)

// Predicate reports whether a matcher applies to a raw value.
type Predicate func(raw string) bool

// Converter turns a raw value into its typed form.
type Converter func(raw string) (any, error)

// Matcher pairs a predicate with the converter applied when it matches.
type Matcher struct {
	Name    string
	Match   Predicate
	Convert Converter
}

var (
	// A decimal point or an exponent is required; bare integers fall through
	// to the integer matcher.
	floatRe = regexp.MustCompile(`^[-+]?(\d*\.\d+([eE][-+]?\d+)?|\d+[eE][-+]?\d+)$`)
	intRe   = regexp.MustCompile(`^[-+]?\d+$`)
	dateRe  = regexp.MustCompile(
		`^([12]\d{3})-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])` +
			`([T ]` +
			`([01]\d|2[0-3]):([0-5]\d):([0-5]\d(\.\d{1,6})?)` +
			`(Z|[+-][01]\d:[0-5]\d)?)?$`)
	arrayRe = regexp.MustCompile(`^\[.*\]$`)
)

// Matchers is the inference table. Evaluation order is significant: the
// float matcher runs before the integer matcher so "12.5" stays a float, and
// the integer matcher runs before the date matcher so "2024" stays a number.
var Matchers = []Matcher{
	{Name: "float", Match: floatRe.MatchString, Convert: toFloat},
	{Name: "int", Match: intRe.MatchString, Convert: toInt},
	{Name: "date", Match: dateRe.MatchString, Convert: toTime},
	{Name: "array", Match: arrayRe.MatchString, Convert: toArray},
	{Name: "true", Match: literal("true"), Convert: constant(true)},
	{Name: "false", Match: literal("false"), Convert: constant(false)},
	{Name: "null", Match: literal("null"), Convert: constant(nil)},
	{Name: "none", Match: literal("none"), Convert: constant(nil)},
}

// Infer converts raw using the first matching entry of Matchers and returns
// raw unchanged when nothing matches.
func Infer(raw string) (any, error) {
	return InferWith(Matchers, raw)
}

// InferWith is Infer over a caller-supplied table.
func InferWith(matchers []Matcher, raw string) (any, error) {
	for _, m := range matchers {
		if !m.Match(raw) {
			continue
		}
		v, err := m.Convert(raw)
		if err != nil {
			return nil, qerrors.ValueParseError(raw, err)
		}
		return v, nil
	}
	return raw, nil
}

func literal(word string) Predicate {
	return func(raw string) bool {
		return strings.ToLower(raw) == word
	}
}

func constant(v any) Converter {
	return func(string) (any, error) {
		return v, nil
	}
}

func toFloat(raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return f, nil
	}
	return f, err
}

func toInt(raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return n, nil
	}
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		// too wide for int64; keep the magnitude as a float
		return strconv.ParseFloat(raw, 64)
	}
	return nil, err
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.999999Z07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02",
}

// toTime decodes an ISO-8601 date or datetime. Values the pattern accepts
// but the calendar does not (2023-02-30) are returned unchanged.
func toTime(raw string) (any, error) {
	s := raw
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return raw, nil
}

func toArray(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after array at offset %d", dec.InputOffset())
	}
	if out == nil {
		out = []any{}
	}
	return normalizeNumbers(out).([]any), nil
}

// normalizeNumbers replaces json.Number with int64 when integral and in
// range, float64 otherwise.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return x.String()
		}
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	}
	return v
}
