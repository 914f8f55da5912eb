package compile

import (
	"fmt"

	"github.com/nonibytes/qfilter/qfilter/binding"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

// Logical compiles a binding expression against params.
//
// Leaves resolve through Field. Operator nodes become {combinator: [...]};
// an operand that is itself {sameCombinator: [...]} is spliced into the
// parent list, so a+b+c yields one $and of three clauses while (a|b)+c keeps
// the $or nested.
func Logical(expr binding.Expr, params Lookup) (mql.Document, error) {
	switch e := expr.(type) {
	case binding.Field:
		raw, ok := params.Get(e.Name)
		if !ok {
			return nil, qerrors.OperatorError(
				fmt.Sprintf("field '%s' referenced in binding but not supplied", e.Name), e.Name)
		}
		return Field(e.Name, raw)

	case binding.Binary:
		combinator, ok := mql.Logical(byte(e.Op))
		if !ok {
			return nil, qerrors.OperatorError(fmt.Sprintf("unsupported logical operator: %s", e.Op), "")
		}

		operands := make([]mql.Document, 0, 2)
		for _, side := range [2]binding.Expr{e.Left, e.Right} {
			compiled, err := Logical(side, params)
			if err != nil {
				return nil, err
			}
			operands = appendFlattened(operands, compiled, combinator)
		}
		return mql.Document{combinator: operands}, nil

	default:
		return nil, qerrors.New(qerrors.ErrParse, fmt.Sprintf("unknown expression type: %T", expr))
	}
}

func appendFlattened(operands []mql.Document, d mql.Document, combinator string) []mql.Document {
	if key, ok := d.SingleKey(); ok && key == combinator {
		if nested, ok := d[key].([]mql.Document); ok {
			return append(operands, nested...)
		}
	}
	return append(operands, d)
}
