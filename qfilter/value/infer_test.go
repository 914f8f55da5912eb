package value_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/value"
)

func TestInfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expected any
		name     string
		raw      string
	}{
		{name: "integer", raw: "12", expected: int64(12)},
		{name: "negative integer", raw: "-8", expected: int64(-8)},
		{name: "signed integer", raw: "+8", expected: int64(8)},
		{name: "float", raw: "12.5", expected: 12.5},
		{name: "float without integer part", raw: ".34", expected: 0.34},
		{name: "float exponent", raw: "12e4", expected: 120000.0},
		{name: "float signed exponent", raw: "-12.34E5", expected: -1234000.0},
		{name: "year stays integer", raw: "2024", expected: int64(2024)},
		{name: "oversized integer becomes float", raw: "99999999999999999999", expected: 1e20},
		{name: "true upper", raw: "TRUE", expected: true},
		{name: "false", raw: "false", expected: false},
		{name: "null", raw: "null", expected: nil},
		{name: "none upper", raw: "NONE", expected: nil},
		{name: "plain string", raw: "hello", expected: "hello"},
		{name: "empty string", raw: "", expected: ""},
		{name: "trailing dot is not a float", raw: "12.", expected: "12."},
		{name: "string array", raw: `["a","b"]`, expected: []any{"a", "b"}},
		{name: "mixed array", raw: `["hola", "mundo", 4, 1.5, true, null]`, expected: []any{"hola", "mundo", int64(4), 1.5, true, nil}},
		{name: "empty array", raw: `[]`, expected: []any{}},
		{name: "date", raw: "2024-05-08", expected: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)},
		{name: "datetime zulu", raw: "2023-01-15T14:30:00Z", expected: time.Date(2023, 1, 15, 14, 30, 0, 0, time.UTC)},
		{name: "naive datetime with space", raw: "2023-01-15 14:30:00", expected: time.Date(2023, 1, 15, 14, 30, 0, 0, time.UTC)},
		{name: "impossible calendar date stays string", raw: "2023-02-30", expected: "2023-02-30"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := value.Infer(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInferDatetimeWithOffset(t *testing.T) {
	t.Parallel()

	got, err := value.Infer("2023-01-15 14:30:00.123456+02:00")
	require.NoError(t, err)

	ts, ok := got.(time.Time)
	require.True(t, ok, "expected time.Time, got %T", got)

	want := time.Date(2023, 1, 15, 12, 30, 0, 123456000, time.UTC)
	assert.True(t, ts.Equal(want), "got %s, want %s", ts, want)

	_, offset := ts.Zone()
	assert.Equal(t, 2*3600, offset)
}

func TestInferInvalidArray(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"[a,b]", `["a",]`, `[1] [2]`} {
		_, err := value.Infer(raw)
		require.Error(t, err, raw)
		assert.True(t, qerrors.IsKind(err, qerrors.ErrValueParse), raw)
		assert.Contains(t, err.Error(), raw)
		assert.ErrorIs(t, err, qerrors.ErrFilter)
	}
}

func TestMatcherOrderIsSignificant(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, len(value.Matchers))
	for _, m := range value.Matchers {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"float", "int", "date", "array", "true", "false", "null", "none"}, names)

	got, err := value.InferWith(value.Matchers[2:], "2024")
	require.NoError(t, err)
	assert.Equal(t, "2024", got, "without the integer matcher a bare year is left as text")
}
