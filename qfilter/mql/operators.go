package mql

// Separator splits a field key into base field and comparison suffix.
const Separator = "__"

const (
	OpEq      = "$eq"
	OpNe      = "$ne"
	OpGte     = "$gte"
	OpLte     = "$lte"
	OpGt      = "$gt"
	OpLt      = "$lt"
	OpIn      = "$in"
	OpNin     = "$nin"
	OpRegex   = "$regex"
	OpOptions = "$options"
	OpAll     = "$all"
	OpExists  = "$exists"

	OpAnd = "$and"
	OpOr  = "$or"
)

// RegexSuffix is the comparison suffix whose value bypasses type inference.
const RegexSuffix = "regex"

var comparison = map[string]string{
	"eq":        OpEq,
	"ne":        OpNe,
	"gte":       OpGte,
	"lte":       OpLte,
	"gt":        OpGt,
	"lt":        OpLt,
	"in":        OpIn,
	"nin":       OpNin,
	RegexSuffix: OpRegex,
	"all":       OpAll,
	"exists":    OpExists,
}

var logical = map[byte]string{
	'+': OpAnd,
	'|': OpOr,
}

// Comparison returns the operator symbol for a key suffix such as "lt".
func Comparison(suffix string) (string, bool) {
	sym, ok := comparison[suffix]
	return sym, ok
}

// Logical returns the combinator for a binding symbol ('+' or '|').
func Logical(symbol byte) (string, bool) {
	c, ok := logical[symbol]
	return c, ok
}

// ComparisonSuffixes lists the supported suffixes in a stable order.
func ComparisonSuffixes() []string {
	return []string{"eq", "ne", "gte", "lte", "gt", "lt", "in", "nin", RegexSuffix, "all", "exists"}
}
