package compiler

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/schema"
)

// renderMode selects how field references render.
type renderMode int

const (
	// rowMode renders field references against the loaded primary row
	// variable (v_row.status). Used everywhere a step evaluates values.
	rowMode renderMode = iota

	// columnMode renders field references as bare columns. Used when a
	// Validate precondition is repeated inside a mutating statement's
	// row-matching condition, where the columns of the target row are in
	// scope.
	columnMode
)

// RefSet collects the names an expression references, for scope validation
// and for deciding whether a predicate can be repeated as a row
// precondition (only row fields and parameters qualify; loop variables and
// call results are invocation-local).
type RefSet struct {
	Fields   []string
	Params   []string
	Bindings []string
}

// rowAndParamsOnly reports whether the expression depends on nothing but
// the current row and declared parameters.
func (r RefSet) rowAndParamsOnly() bool {
	return len(r.Bindings) == 0
}

// compiled carries the rendered SQL of a subexpression. jsonText marks a
// JSONB ->> access, which yields text and picks up a cast when compared
// against a typed literal.
type compiled struct {
	sql      string
	jsonText bool
}

// compileExpr renders e as target SQL and reports every referenced name.
// Referencing an undeclared name is a compile-time error, never deferred to
// runtime.
func (c *ActionContext) compileExpr(e schema.Expr, mode renderMode) (string, RefSet, error) {
	var refs RefSet
	out, err := c.renderExpr(e, mode, &refs)
	if err != nil {
		return "", RefSet{}, err
	}
	return out.sql, refs, nil
}

// compileTyped renders a value expression bound for a typed slot: a key
// lookup argument, a column assignment, a call argument. A JSONB ->>
// access yields text and PostgreSQL will not implicitly cast it in those
// positions, so the access picks up a cast to the slot's type; TEXT slots
// take it as-is.
func (c *ActionContext) compileTyped(e schema.Expr, mode renderMode, pg string) (string, error) {
	var refs RefSet
	out, err := c.renderExpr(e, mode, &refs)
	if err != nil {
		return "", err
	}
	if out.jsonText && pg != "TEXT" {
		return out.sql + "::" + pg, nil
	}
	return out.sql, nil
}

// compileIDExpr renders an expression used as an external identifier and
// reports whether it is invocation-stable: depending on parameters and
// constants only, never on row fields or loop bindings. Stability decides
// whether the Resolver may reuse an earlier lookup of the same id.
func (c *ActionContext) compileIDExpr(e schema.Expr) (sql string, stable bool, err error) {
	var refs RefSet
	out, err := c.renderExpr(e, rowMode, &refs)
	if err != nil {
		return "", false, err
	}
	sql = out.sql
	if out.jsonText {
		sql += "::UUID"
	}
	return sql, len(refs.Fields) == 0 && len(refs.Bindings) == 0, nil
}

func (c *ActionContext) renderExpr(e schema.Expr, mode renderMode, refs *RefSet) (compiled, error) {
	switch x := e.(type) {
	case *schema.FieldRef:
		return c.renderFieldRef(x, mode, refs)

	case *schema.ParamRef:
		if c.paramByName(x.Name) == nil {
			return compiled{}, c.errf("reference to undeclared parameter %q", x.Name)
		}
		refs.Params = append(refs.Params, x.Name)
		return compiled{sql: "p_" + sqlName(x.Name)}, nil

	case *schema.BindingRef:
		b, ok := c.lookup(x.Name)
		if !ok {
			return compiled{}, c.errf("reference to undeclared binding %q", x.Name)
		}
		refs.Bindings = append(refs.Bindings, x.Name)
		return compiled{sql: b.sqlVar}, nil

	case *schema.Literal:
		return renderLiteral(c, x)

	case *schema.List:
		return compiled{}, c.errf("a list is only valid as the right side of IN")

	case *schema.Compare:
		return c.renderCompare(x, mode, refs)

	case *schema.And:
		return c.renderJunction(x.Operands, "AND", "TRUE", mode, refs)

	case *schema.Or:
		return c.renderJunction(x.Operands, "OR", "FALSE", mode, refs)

	case *schema.Not:
		inner, err := c.renderExpr(x.Operand, mode, refs)
		if err != nil {
			return compiled{}, err
		}
		return compiled{sql: "NOT (" + inner.sql + ")"}, nil

	case *schema.FuncCall:
		return c.renderFuncCall(x, mode, refs)

	default:
		return compiled{}, c.errf("unhandled expression kind %T", e)
	}
}

func (c *ActionContext) renderFieldRef(x *schema.FieldRef, mode renderMode, refs *RefSet) (compiled, error) {
	if x.Of != "" {
		// Field of a bound loop element: JSONB member access.
		b, ok := c.lookup(x.Of)
		if !ok {
			return compiled{}, c.errf("reference to undeclared binding %q", x.Of)
		}
		if b.kind != bindElement {
			return compiled{}, c.errf("binding %q is not a loop variable", x.Of)
		}
		refs.Bindings = append(refs.Bindings, x.Of)
		return compiled{
			sql:      fmt.Sprintf("(%s->>'%s')", b.sqlVar, sqlName(x.Name)),
			jsonText: true,
		}, nil
	}

	field := c.entity.Field(x.Name)
	if field == nil {
		return compiled{}, c.errf("entity %s has no field %q", c.entity.Name, x.Name)
	}
	refs.Fields = append(refs.Fields, x.Name)

	col := columnName(field)
	if mode == columnMode {
		return compiled{sql: col}, nil
	}
	if c.rowVar == "" {
		return compiled{}, c.errf("field %q referenced but action has no current row", x.Name)
	}
	return compiled{sql: c.rowVar + "." + col}, nil
}

func renderLiteral(c *ActionContext, x *schema.Literal) (compiled, error) {
	switch v := x.Value.(type) {
	case string:
		return compiled{sql: quoteLiteral(v)}, nil
	case int:
		return compiled{sql: fmt.Sprintf("%d", v)}, nil
	case int64:
		return compiled{sql: fmt.Sprintf("%d", v)}, nil
	case bool:
		if v {
			return compiled{sql: "TRUE"}, nil
		}
		return compiled{sql: "FALSE"}, nil
	case nil:
		return compiled{sql: "NULL"}, nil
	default:
		return compiled{}, c.errf("unsupported literal type %T", x.Value)
	}
}

func (c *ActionContext) renderCompare(x *schema.Compare, mode renderMode, refs *RefSet) (compiled, error) {
	if !schema.ValidCompareOps[x.Op] {
		return compiled{}, c.errf("unsupported comparison operator %q", x.Op)
	}

	left, err := c.renderExpr(x.Left, mode, refs)
	if err != nil {
		return compiled{}, err
	}

	if x.Op == schema.OpIn {
		list, ok := x.Right.(*schema.List)
		if !ok {
			return compiled{}, c.errf("IN requires a list on the right side")
		}
		if len(list.Items) == 0 {
			return compiled{}, c.errf("IN requires a non-empty list")
		}
		var items []string
		for _, item := range list.Items {
			r, err := c.renderExpr(item, mode, refs)
			if err != nil {
				return compiled{}, err
			}
			items = append(items, r.sql)
		}
		return compiled{sql: fmt.Sprintf("%s IN (%s)", left.sql, strings.Join(items, ", "))}, nil
	}

	right, err := c.renderExpr(x.Right, mode, refs)
	if err != nil {
		return compiled{}, err
	}

	// A JSONB ->> access yields text; cast it when the other side is a
	// typed literal so comparisons are value comparisons.
	leftSQL, rightSQL := left.sql, right.sql
	if left.jsonText {
		leftSQL = castJSONAccess(leftSQL, x.Right)
	}
	if right.jsonText {
		rightSQL = castJSONAccess(rightSQL, x.Left)
	}

	return compiled{sql: fmt.Sprintf("%s %s %s", leftSQL, x.Op, rightSQL)}, nil
}

// castJSONAccess appends a cast to a ->> access based on the literal it is
// compared against. Non-literal counterparts leave the access as text.
func castJSONAccess(sql string, other schema.Expr) string {
	lit, ok := other.(*schema.Literal)
	if !ok {
		return sql
	}
	switch lit.Value.(type) {
	case int, int64:
		return sql + "::INTEGER"
	case bool:
		return sql + "::BOOLEAN"
	default:
		return sql
	}
}

func (c *ActionContext) renderJunction(operands []schema.Expr, op, empty string, mode renderMode, refs *RefSet) (compiled, error) {
	if len(operands) == 0 {
		return compiled{sql: empty}, nil
	}
	var parts []string
	for _, operand := range operands {
		r, err := c.renderExpr(operand, mode, refs)
		if err != nil {
			return compiled{}, err
		}
		parts = append(parts, r.sql)
	}
	if len(parts) == 1 {
		return compiled{sql: parts[0]}, nil
	}
	return compiled{sql: "(" + strings.Join(parts, " "+op+" ") + ")"}, nil
}

// builtin describes one member of the fixed built-in function set.
type builtin struct {
	minArgs int
	maxArgs int // -1 = unbounded
	render  func(args []string) string
}

var builtins = map[string]builtin{
	"now":    {0, 0, func([]string) string { return "now()" }},
	"caller": {0, 0, func([]string) string { return "p_caller_id" }},
	"tenant": {0, 0, func([]string) string { return "p_tenant_id" }},
	"length": {1, 1, func(a []string) string { return "length(" + a[0] + ")" }},
	"array_length": {1, 1, func(a []string) string {
		return "jsonb_array_length(" + a[0] + ")"
	}},
	"concat": {2, -1, func(a []string) string {
		return "(" + strings.Join(a, " || ") + ")"
	}},
	"lower":    {1, 1, func(a []string) string { return "lower(" + a[0] + ")" }},
	"upper":    {1, 1, func(a []string) string { return "upper(" + a[0] + ")" }},
	"trim":     {1, 1, func(a []string) string { return "trim(" + a[0] + ")" }},
	"coalesce": {1, -1, func(a []string) string { return "COALESCE(" + strings.Join(a, ", ") + ")" }},
}

func (c *ActionContext) renderFuncCall(x *schema.FuncCall, mode renderMode, refs *RefSet) (compiled, error) {
	fn, ok := builtins[x.Name]
	if !ok {
		return compiled{}, c.errf("unknown function %q", x.Name)
	}
	if len(x.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(x.Args) > fn.maxArgs) {
		return compiled{}, c.errf("function %q: wrong argument count %d", x.Name, len(x.Args))
	}
	var args []string
	for _, arg := range x.Args {
		r, err := c.renderExpr(arg, mode, refs)
		if err != nil {
			return compiled{}, err
		}
		args = append(args, r.sql)
	}
	return compiled{sql: fn.render(args)}, nil
}
