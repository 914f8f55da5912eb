package binding

import "fmt"

// Expr is a node of a parsed binding expression: either a Field leaf or a
// Binary operator node.
type Expr interface {
	isExpr()
	String() string
}

// Op is a logical binding operator.
type Op byte

const (
	OpAnd Op = '+'
	OpOr  Op = '|'
)

func (op Op) String() string {
	return string(op)
}

// Field is a leaf naming a parameter key, operator suffix included.
type Field struct {
	Name string
}

func (Field) isExpr() {}

func (f Field) String() string { return f.Name }

// Binary applies Op to two operands. Chains are left-associative, so a+b+c
// is Binary{+, Binary{+, a, b}, c}.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (Binary) isExpr() {}

func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Fields returns the leaf names of expr in left-to-right order.
func Fields(expr Expr) []string {
	var out []string
	collectFields(expr, &out)
	return out
}

func collectFields(expr Expr, out *[]string) {
	switch e := expr.(type) {
	case Field:
		*out = append(*out, e.Name)
	case Binary:
		collectFields(e.Left, out)
		collectFields(e.Right, out)
	}
}
