package schema

// Expr represents a node in the step expression sublanguage.
//
// This is a sealed interface - only types in this package implement it.
// The grammar deliberately excludes sub-queries and side-effecting calls;
// any cross-entity lookup must go through an explicit Call step, keeping
// expression evaluation pure and analyzable.
//
// Expression types:
//   - FieldRef: field of the current row, or of a bound loop variable
//   - ParamRef: declared action input parameter
//   - BindingRef: local binding introduced by a Call or Foreach step
//   - Literal: string, integer, boolean or null constant
//   - List: literal sequence, only valid as the right side of IN
//   - Compare: binary comparison (=, !=, <, >, <=, >=, IN)
//   - And, Or, Not: boolean combinators
//   - FuncCall: one of the fixed built-in functions
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// CompareOp enumerates the comparison operators.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpGt CompareOp = ">"
	OpLe CompareOp = "<="
	OpGe CompareOp = ">="
	OpIn CompareOp = "IN"
)

// ValidCompareOps defines the allowed comparison operators.
var ValidCompareOps = map[CompareOp]bool{
	OpEq: true, OpNe: true, OpLt: true, OpGt: true,
	OpLe: true, OpGe: true, OpIn: true,
}

// FieldRef references a field of the current entity row (Of == "") or a
// field of a bound loop element (Of == loop variable name).
type FieldRef struct {
	Name string
	Of   string
}

func (FieldRef) exprNode() {}

// ParamRef references a declared action input parameter.
type ParamRef struct {
	Name string
}

func (ParamRef) exprNode() {}

// BindingRef references a local binding introduced by an earlier step
// (a Call result or a Foreach loop variable used as a whole value).
type BindingRef struct {
	Name string
}

func (BindingRef) exprNode() {}

// Literal is a constant. Value must be one of string, int, int64, bool or
// nil; anything else is rejected at compile time.
type Literal struct {
	Value any
}

func (Literal) exprNode() {}

// List is a literal sequence of expressions. Only valid as the right-hand
// side of an IN comparison.
type List struct {
	Items []Expr
}

func (List) exprNode() {}

// Compare is a binary comparison. For OpIn the right side must be a List.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Compare) exprNode() {}

// And is a conjunction. Empty operands means "always true".
type And struct {
	Operands []Expr
}

func (And) exprNode() {}

// Or is a disjunction. Empty operands means "always false".
type Or struct {
	Operands []Expr
}

func (Or) exprNode() {}

// Not negates its operand.
type Not struct {
	Operand Expr
}

func (Not) exprNode() {}

// FuncCall invokes one of the fixed built-in functions. The compiler
// rejects any name outside the built-in set.
//
// Built-ins: now, caller, tenant, length, array_length, concat, lower,
// upper, trim, coalesce.
type FuncCall struct {
	Name string
	Args []Expr
}

func (FuncCall) exprNode() {}
