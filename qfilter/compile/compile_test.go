package compile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/qfilter/qfilter/binding"
	"github.com/nonibytes/qfilter/qfilter/compile"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/qfilter/value"
)

type params map[string]string

func (p params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

func TestFieldEverySuffix(t *testing.T) {
	t.Parallel()

	raws := []string{"12", "12.5", "true", "null", "2024-05-08", `["a","b"]`, "hello"}
	for _, suffix := range mql.ComparisonSuffixes() {
		if suffix == mql.RegexSuffix {
			continue
		}
		sym, ok := mql.Comparison(suffix)
		require.True(t, ok)

		for _, raw := range raws {
			want, err := value.Infer(raw)
			require.NoError(t, err)

			got, err := compile.Field("field__"+suffix, raw)
			require.NoError(t, err, suffix)
			assert.Equal(t, mql.Document{"field": mql.Document{sym: want}}, got, "suffix=%s raw=%s", suffix, raw)
		}
	}
}

func TestFieldRegexIsNotCoerced(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"user@", "12", "true", "2024-05-08", "[abc]"} {
		got, err := compile.Field("email__regex", raw)
		require.NoError(t, err)
		assert.Equal(t, mql.Document{"email": mql.Document{"$regex": raw, "$options": "i"}}, got)
	}
}

func TestFieldDirectEquality(t *testing.T) {
	t.Parallel()

	got, err := compile.Field("is_verified", "false")
	require.NoError(t, err)
	assert.Equal(t, mql.Document{"is_verified": false}, got)
}

func TestFieldErrors(t *testing.T) {
	t.Parallel()

	_, err := compile.Field("field__bogus", "1")
	require.Error(t, err)
	assert.True(t, qerrors.IsKind(err, qerrors.ErrOperator))
	assert.Contains(t, err.Error(), "bogus")

	_, err = compile.Field("field__in", "[a,b]")
	require.Error(t, err)
	assert.True(t, qerrors.IsKind(err, qerrors.ErrValueParse))
}

func TestSplitKey(t *testing.T) {
	t.Parallel()

	base, suffix, ok := compile.SplitKey("created_at__lt")
	assert.Equal(t, "created_at", base)
	assert.Equal(t, "lt", suffix)
	assert.True(t, ok)

	base, suffix, ok = compile.SplitKey("a__b__gt")
	assert.Equal(t, "a", base)
	assert.Equal(t, "b__gt", suffix)
	assert.True(t, ok)

	assert.Equal(t, "created_at", compile.BaseField("created_at"))
}

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("insert when absent", func(t *testing.T) {
		t.Parallel()

		got := compile.Merge(mql.Document{}, mql.Document{"price": mql.Document{"$lt": int64(5)}}, mql.OpAnd)
		assert.Equal(t, mql.Document{"price": mql.Document{"$lt": int64(5)}}, got)
	})

	t.Run("and merges operators", func(t *testing.T) {
		t.Parallel()

		filters := mql.Document{"price": mql.Document{"$gte": int64(1), "$lt": int64(9)}}
		got := compile.Merge(filters, mql.Document{"price": mql.Document{"$lt": int64(5)}}, mql.OpAnd)
		assert.Equal(t, mql.Document{"price": mql.Document{"$gte": int64(1), "$lt": int64(5)}}, got)
	})

	t.Run("and promotes scalar equality", func(t *testing.T) {
		t.Parallel()

		filters := mql.Document{"price": int64(3)}
		got := compile.Merge(filters, mql.Document{"price": mql.Document{"$ne": int64(4)}}, mql.OpAnd)
		assert.Equal(t, mql.Document{"price": mql.Document{"$eq": int64(3), "$ne": int64(4)}}, got)
	})

	t.Run("or wraps both alternatives", func(t *testing.T) {
		t.Parallel()

		filters := mql.Document{"price": mql.Document{"$lt": int64(5)}}
		got := compile.Merge(filters, mql.Document{"price": mql.Document{"$gt": int64(10)}}, mql.OpOr)
		assert.Equal(t, mql.Document{"price": mql.Document{"$or": []mql.Document{
			{"price": mql.Document{"$lt": int64(5)}},
			{"price": mql.Document{"$gt": int64(10)}},
		}}}, got)
	})
}

func TestLogical(t *testing.T) {
	t.Parallel()

	p := params{
		"a":              "1",
		"b":              "2",
		"c":              "3",
		"d":              "4",
		"created_at__lt": "2024-05-08",
		"is_verified":    "false",
		"has_evolved":    "true",
	}
	A := mql.Document{"a": int64(1)}
	B := mql.Document{"b": int64(2)}
	C := mql.Document{"c": int64(3)}
	D := mql.Document{"d": int64(4)}
	created := mql.Document{"created_at": mql.Document{"$lt": time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)}}
	verified := mql.Document{"is_verified": false}
	evolved := mql.Document{"has_evolved": true}

	tests := []struct {
		expected mql.Document
		name     string
		binding  string
	}{
		{name: "single leaf", binding: "a", expected: A},
		{name: "and", binding: "a+b", expected: mql.Document{"$and": []mql.Document{A, B}}},
		{name: "or", binding: "a|b", expected: mql.Document{"$or": []mql.Document{A, B}}},
		{name: "and chain flattened", binding: "a+b+c", expected: mql.Document{"$and": []mql.Document{A, B, C}}},
		{name: "or chain flattened", binding: "a|b|c|d", expected: mql.Document{"$or": []mql.Document{A, B, C, D}}},
		{name: "grouped or inside and", binding: "(a|b)+c", expected: mql.Document{"$and": []mql.Document{
			{"$or": []mql.Document{A, B}}, C,
		}}},
		{name: "right grouped and flattened", binding: "a+(b+c)", expected: mql.Document{"$and": []mql.Document{A, B, C}}},
		{name: "two or groups", binding: "(a|b)+(c|d)", expected: mql.Document{"$and": []mql.Document{
			{"$or": []mql.Document{A, B}},
			{"$or": []mql.Document{C, D}},
		}}},
		{name: "precedence", binding: "created_at__lt|is_verified+has_evolved", expected: mql.Document{"$or": []mql.Document{
			created,
			{"$and": []mql.Document{verified, evolved}},
		}}},
		{name: "grouped precedence", binding: "(created_at__lt|is_verified)+has_evolved", expected: mql.Document{"$and": []mql.Document{
			{"$or": []mql.Document{created, verified}},
			evolved,
		}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			expr, err := binding.Parse(tt.binding)
			require.NoError(t, err)

			got, err := compile.Logical(expr, p)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogicalMissingField(t *testing.T) {
	t.Parallel()

	expr, err := binding.Parse("a+missing")
	require.NoError(t, err)

	_, err = compile.Logical(expr, params{"a": "1"})
	require.Error(t, err)
	assert.True(t, qerrors.IsKind(err, qerrors.ErrOperator))
	assert.Contains(t, err.Error(), "referenced in binding but not supplied")
	assert.Contains(t, err.Error(), "missing")
}
