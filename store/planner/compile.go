// Package planner compiles filter documents into SQL.
//
// Every clause becomes a CTE yielding matching item ids; sibling clauses are
// intersected and $or operands unioned, the same way for every backend. The
// backend only supplies the boolean condition of each leaf through
// storage.Dialect.
package planner

import (
	"fmt"
	"sort"
	"strings"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/store/storage"
)

// CompileOutput is the result of compiling a filter document
type CompileOutput struct {
	CTEs         []CTE
	ResultCTE    string
	ExplainSteps []string
}

// CTE represents a Common Table Expression
type CTE struct {
	Name string
	SQL  string
}

// Compiler compiles filter documents to CTEs
type Compiler struct {
	dialect      storage.Dialect
	builder      storage.Builder
	ctes         []CTE
	explainSteps []string
	cteCounter   int
}

// Compile compiles doc into CTEs. Placeholders are allocated from builder in
// text order, so the caller must render the final statement with the CTEs
// first.
func Compile(doc mql.Document, dialect storage.Dialect, builder storage.Builder) (*CompileOutput, error) {
	c := &Compiler{dialect: dialect, builder: builder}

	resultCTE, err := c.compileDoc(doc)
	if err != nil {
		return nil, err
	}

	return &CompileOutput{
		CTEs:         c.ctes,
		ResultCTE:    resultCTE,
		ExplainSteps: c.explainSteps,
	}, nil
}

func (c *Compiler) nextCTEName() string {
	name := fmt.Sprintf("cte_%d", c.cteCounter)
	c.cteCounter++
	return name
}

func (c *Compiler) addCTE(sql, step string) string {
	name := c.nextCTEName()
	c.ctes = append(c.ctes, CTE{Name: name, SQL: sql})
	c.explainSteps = append(c.explainSteps, fmt.Sprintf("%s: %s", name, step))
	return name
}

func (c *Compiler) where(cond, step string) string {
	return c.addCTE("SELECT id AS item_id FROM documents WHERE "+cond, step)
}

// combine folds names with INTERSECT or UNION. A single name is returned
// as is.
func (c *Compiler) combine(setOp string, names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "SELECT item_id FROM " + n
	}
	return c.addCTE(strings.Join(parts, " "+setOp+" "), setOp+" "+strings.Join(names, ", "))
}

func sortedKeys(d mql.Document) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Compiler) compileDoc(doc mql.Document) (string, error) {
	if len(doc) == 0 {
		return c.addCTE("SELECT id AS item_id FROM documents", "ALL"), nil
	}

	var names []string
	for _, key := range sortedKeys(doc) {
		var (
			name string
			err  error
		)
		switch {
		case key == mql.OpAnd || key == mql.OpOr:
			name, err = c.compileLogical(key, doc[key], "")
		case mql.IsOperatorKey(key):
			err = qerrors.UnsupportedError(fmt.Sprintf("unsupported top-level operator: %s", key), "")
		default:
			name, err = c.compileField(key, doc[key])
		}
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}
	return c.combine("INTERSECT", names), nil
}

func (c *Compiler) compileLogical(op string, v any, field string) (string, error) {
	operands, ok := asDocs(v)
	if !ok || len(operands) == 0 {
		return "", qerrors.UnsupportedError(fmt.Sprintf("%s needs a non-empty list of documents", op), field)
	}
	names := make([]string, 0, len(operands))
	for _, sub := range operands {
		name, err := c.compileDoc(sub)
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}
	if op == mql.OpOr {
		return c.combine("UNION", names), nil
	}
	return c.combine("INTERSECT", names), nil
}

func (c *Compiler) compileField(field string, v any) (string, error) {
	path := strings.Split(field, ".")

	ops, isOps := asDoc(v)
	if !isOps || !allOperators(ops) {
		cond, err := c.eq(field, path, v)
		if err != nil {
			return "", err
		}
		return c.where(cond, fmt.Sprintf("%s = %v", field, v)), nil
	}

	// Nested combinators become CTEs of their own and are compiled first:
	// with '?' placeholders the arguments of the condition CTE must be
	// allocated after theirs.
	var names []string
	for _, op := range []string{mql.OpAnd, mql.OpOr} {
		if arg, ok := ops[op]; ok {
			name, err := c.compileLogical(op, arg, field)
			if err != nil {
				return "", err
			}
			names = append(names, name)
		}
	}

	var conds, steps []string
	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		switch op {
		case mql.OpAnd, mql.OpOr:
			continue
		case mql.OpOptions:
			if _, ok := ops[mql.OpRegex]; !ok {
				return "", qerrors.UnsupportedError("$options without $regex", field)
			}
			continue
		}
		cond, err := c.operator(field, path, op, arg, ops)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
		steps = append(steps, fmt.Sprintf("%s %s %v", field, op, arg))
	}

	if len(conds) > 0 {
		names = append(names, c.where(strings.Join(conds, " AND "), strings.Join(steps, " AND ")))
	}
	return c.combine("INTERSECT", names), nil
}

func (c *Compiler) operator(field string, path []string, op string, arg any, ops mql.Document) (string, error) {
	switch op {
	case mql.OpEq:
		return c.eq(field, path, arg)
	case mql.OpNe:
		cond, err := c.eq(field, path, arg)
		if err != nil {
			return "", err
		}
		return not(cond), nil
	case mql.OpGt, mql.OpGte, mql.OpLt, mql.OpLte:
		v, err := normalize(field, arg)
		if err != nil {
			return "", err
		}
		cond, err := c.dialect.Compare(c.builder, path, cmpOps[op], v)
		if err != nil {
			return "", qerrors.UnsupportedError(err.Error(), field)
		}
		return cond, nil
	case mql.OpIn:
		return c.in(field, path, op, arg)
	case mql.OpNin:
		cond, err := c.in(field, path, op, arg)
		if err != nil {
			return "", err
		}
		return not(cond), nil
	case mql.OpExists:
		cond := c.dialect.Exists(c.builder, path)
		if truthy(arg) {
			return cond, nil
		}
		return "NOT " + cond, nil
	case mql.OpAll:
		list, ok := arg.([]any)
		if !ok {
			return "", qerrors.UnsupportedError("$all needs an array", field)
		}
		if len(list) == 0 {
			return "FALSE", nil
		}
		conds := make([]string, 0, len(list))
		for _, e := range list {
			v, err := normalize(field, e)
			if err != nil {
				return "", err
			}
			cond, err := c.dialect.Contains(c.builder, path, v)
			if err != nil {
				return "", qerrors.UnsupportedError(err.Error(), field)
			}
			conds = append(conds, cond)
		}
		return "(" + strings.Join(conds, " AND ") + ")", nil
	case mql.OpRegex:
		pattern, ok := arg.(string)
		if !ok {
			pattern = fmt.Sprint(arg)
		}
		options, _ := ops[mql.OpOptions].(string)
		return c.dialect.Regex(c.builder, path, pattern, strings.Contains(options, "i")), nil
	default:
		return "", qerrors.UnsupportedError(fmt.Sprintf("unsupported operator: %s", op), field)
	}
}

var cmpOps = map[string]storage.CmpOp{
	mql.OpGt:  storage.CmpGt,
	mql.OpGte: storage.CmpGte,
	mql.OpLt:  storage.CmpLt,
	mql.OpLte: storage.CmpLte,
}

func (c *Compiler) eq(field string, path []string, arg any) (string, error) {
	v, err := normalize(field, arg)
	if err != nil {
		return "", err
	}
	cond, err := c.dialect.Eq(c.builder, path, v)
	if err != nil {
		return "", qerrors.UnsupportedError(err.Error(), field)
	}
	return cond, nil
}

// in matches any element of the list; an empty list matches nothing.
func (c *Compiler) in(field string, path []string, op string, arg any) (string, error) {
	list, ok := arg.([]any)
	if !ok {
		return "", qerrors.UnsupportedError(op+" needs an array", field)
	}
	if len(list) == 0 {
		return "FALSE", nil
	}
	conds := make([]string, 0, len(list))
	for _, e := range list {
		cond, err := c.eq(field, path, e)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	return "(" + strings.Join(conds, " OR ") + ")", nil
}
