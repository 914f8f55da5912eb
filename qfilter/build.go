// Package qfilter builds MongoDB-style filter documents from query-string
// parameters.
//
// Every parameter becomes one clause. A key may carry a comparison suffix
// separated by "__" (price__lte=7.8). Without a binding expression all
// clauses are AND-ed; the reserved "__binding__" parameter composes them
// explicitly with '+' (AND), '|' (OR) and parentheses:
//
//	price__lte=7.8&is_verified=false&has_evolved=true&__binding__=(price__lte|is_verified)+has_evolved
//
// builds
//
//	{$and: [{$or: [{price: {$lte: 7.8}}, {is_verified: false}]}, {has_evolved: true}]}
package qfilter

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/nonibytes/qfilter/qfilter/binding"
	"github.com/nonibytes/qfilter/qfilter/compile"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

// DefaultBindingKey is the reserved parameter carrying the binding
// expression.
const DefaultBindingKey = "__binding__"

// Options configures a Builder.
type Options struct {
	// BindingKey names the reserved binding parameter.
	BindingKey string
	// Combinator joins clauses on the same base field when no binding is
	// given: mql.OpAnd or mql.OpOr.
	Combinator string
	// Exclude is applied to every build in addition to the per-call list.
	Exclude FieldLister
	Logger  *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		BindingKey: DefaultBindingKey,
		Combinator: mql.OpAnd,
	}
}

// Builder builds filter documents. It holds only configuration and is safe
// for concurrent use.
type Builder struct {
	opts Options
	log  *slog.Logger
}

// New returns a Builder. Zero-valued options fall back to DefaultOptions.
func New(opts Options) (*Builder, error) {
	def := DefaultOptions()
	if opts.BindingKey == "" {
		opts.BindingKey = def.BindingKey
	}
	if opts.Combinator == "" {
		opts.Combinator = def.Combinator
	}
	if opts.Combinator != mql.OpAnd && opts.Combinator != mql.OpOr {
		return nil, qerrors.OperatorError(fmt.Sprintf("unsupported combinator: %s", opts.Combinator), "")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{opts: opts, log: log}, nil
}

var defaultBuilder, _ = New(DefaultOptions())

// Build builds a filter document with the default options.
func Build(params *Params, exclude FieldLister) (mql.Document, error) {
	return defaultBuilder.Build(params, exclude)
}

// BuildQuery parses a URL query string and builds it with the default
// options.
func BuildQuery(raw string, exclude FieldLister) (mql.Document, error) {
	return defaultBuilder.BuildQuery(raw, exclude)
}

// BuildMap builds from a plain map with the default options.
func BuildMap(m map[string]string, exclude FieldLister) (mql.Document, error) {
	return defaultBuilder.Build(ParamsFromMap(m), exclude)
}

// BuildValues builds from url.Values, using the first value of each key.
func BuildValues(v url.Values, exclude FieldLister) (mql.Document, error) {
	return defaultBuilder.Build(ParamsFromValues(v), exclude)
}

func (b *Builder) BindingKey() string { return b.opts.BindingKey }

// ParseQuery decodes raw with this builder's binding key.
func (b *Builder) ParseQuery(raw string) (*Params, error) {
	p, err := ParseQuery(raw, b.opts.BindingKey)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrParse, "invalid query string", err)
	}
	return p, nil
}

func (b *Builder) BuildQuery(raw string, exclude FieldLister) (mql.Document, error) {
	p, err := b.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	return b.Build(p, exclude)
}

// Build turns params into a filter document. params is not modified.
//
// The binding parameter is always removed, then excluded fields are dropped.
// Without a binding, every remaining parameter is compiled and clauses on the
// same base field are merged with the configured combinator. With a binding,
// only the fields it names are compiled, composed as the expression says.
func (b *Builder) Build(params *Params, exclude FieldLister) (mql.Document, error) {
	p := params.Clone()

	bindingExpr, hasBinding := p.Get(b.opts.BindingKey)
	p.Del(b.opts.BindingKey)

	excluded := newExclusionSet(b.opts.Exclude, exclude)
	for _, key := range p.Keys() {
		if excluded.excludes(key, compile.BaseField(key)) {
			b.log.Debug("excluding field", "key", key)
			p.Del(key)
		}
	}

	if !hasBinding || bindingExpr == "" {
		return b.buildSimple(p)
	}
	return b.buildWithBinding(p, bindingExpr)
}

func (b *Builder) buildSimple(p *Params) (mql.Document, error) {
	filters := mql.Document{}
	for _, key := range p.Keys() {
		raw, _ := p.Get(key)
		clause, err := compile.Field(key, raw)
		if err != nil {
			return nil, err
		}
		compile.Merge(filters, clause, b.opts.Combinator)
	}
	b.log.Debug("built filter", "fields", p.Len(), "combinator", b.opts.Combinator)
	return filters, nil
}

func (b *Builder) buildWithBinding(p *Params, bindingExpr string) (mql.Document, error) {
	expr, err := binding.Parse(bindingExpr)
	if err != nil {
		return nil, err
	}
	b.log.Debug("parsed binding", "binding", bindingExpr, "expr", expr.String())
	return compile.Logical(expr, p)
}
