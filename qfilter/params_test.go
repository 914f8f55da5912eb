package qfilter_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/qfilter/qfilter"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	p, err := qfilter.ParseQuery("?b=2&a=1&b=3&&c&name=J%C3%B6rg+M&__binding__=a+b%7Cc", qfilter.DefaultBindingKey)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "name", "__binding__"}, p.Keys())

	v, ok := p.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v, "first value wins")

	_, ok = p.Get("c")
	assert.False(t, ok, "blank values are dropped")

	v, _ = p.Get("name")
	assert.Equal(t, "Jörg M", v)

	v, _ = p.Get("__binding__")
	assert.Equal(t, "a+b|c", v)

	_, err = qfilter.ParseQuery("a=%2", qfilter.DefaultBindingKey)
	require.Error(t, err)
}

func TestParamsSetDelClone(t *testing.T) {
	t.Parallel()

	p := qfilter.NewParams()
	p.Set("x", "1")
	p.Set("y", "2")
	p.Set("x", "3")
	assert.Equal(t, []string{"x", "y"}, p.Keys())
	assert.Equal(t, 2, p.Len())

	c := p.Clone()
	c.Del("x")
	c.Del("missing")
	assert.Equal(t, []string{"y"}, c.Keys())
	assert.Equal(t, []string{"x", "y"}, p.Keys())

	v, _ := p.Get("x")
	assert.Equal(t, "3", v)

	var nilParams *qfilter.Params
	_, ok := nilParams.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, nilParams.Len())
	assert.Equal(t, 0, nilParams.Clone().Len())
}

func TestParamsFromValues(t *testing.T) {
	t.Parallel()

	p := qfilter.ParamsFromValues(url.Values{
		"b":     {"1", "2"},
		"a":     {"x"},
		"empty": {},
	})
	assert.Equal(t, []string{"a", "b"}, p.Keys())
	v, _ := p.Get("b")
	assert.Equal(t, "1", v)
}
