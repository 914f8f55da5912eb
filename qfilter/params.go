package qfilter

import (
	"net/url"
	"sort"
	"strings"
)

// Params is an ordered set of single-valued query parameters. Order is the
// order keys were first added; clause merging on the no-binding path follows
// it.
type Params struct {
	keys   []string
	values map[string]string
}

func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// ParamsFromMap copies m. Keys are ordered lexically since map iteration
// order is unspecified.
func ParamsFromMap(m map[string]string) *Params {
	p := NewParams()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// ParamsFromValues keeps the first value of every key in v.
func ParamsFromValues(v url.Values) *Params {
	p := NewParams()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if vals := v[k]; len(vals) > 0 {
			p.Set(k, vals[0])
		}
	}
	return p
}

// ParseQuery decodes a URL query string, keeping key order and the first
// non-blank value of repeated keys. Blank values ("c" or "c=") are dropped.
// The value of bindingKey is decoded without turning '+' into a space, so
// "a+b" keeps its AND operator.
func ParseQuery(raw, bindingKey string) (*Params, error) {
	p := NewParams()
	raw = strings.TrimPrefix(raw, "?")
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		var val string
		if key == bindingKey {
			val, err = url.PathUnescape(v)
		} else {
			val, err = url.QueryUnescape(v)
		}
		if err != nil {
			return nil, err
		}
		if val == "" {
			continue
		}
		if _, seen := p.values[key]; !seen {
			p.Set(key, val)
		}
	}
	return p, nil
}

// Set assigns value to key. A new key goes last; an existing key keeps its
// position.
func (p *Params) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

func (p *Params) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order. The slice is a copy.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.values[k])
	}
	return out
}
