package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/schema"
)

func exprTestContext(t *testing.T) *ActionContext {
	t.Helper()
	bundle := &schema.Bundle{
		Entities: []schema.EntityDefinition{
			{
				Name:   "Contact",
				Schema: "crm",
				Fields: []schema.FieldDefinition{
					{Name: "name", Type: schema.TypeText},
					{Name: "status", Type: schema.TypeText},
					{Name: "score", Type: schema.TypeInteger},
					{Name: "company", Type: schema.TypeRef, Ref: "Company"},
					{Name: "tags", Type: schema.TypeJSONB},
				},
				Actions: []schema.ActionDefinition{
					{
						Name: "touch",
						Params: []schema.ParamDefinition{
							{Name: "notes", Type: schema.TypeText},
							{Name: "threshold", Type: schema.TypeInteger, Required: true},
						},
						Steps: []schema.Step{&schema.Delete{}},
					},
				},
			},
			{Name: "Company", Schema: "crm"},
		},
	}
	entity := bundle.Entity("Contact")
	opts := Options{}
	opts.ApplyDefaults()
	c := newActionContext(bundle, entity, &entity.Actions[0], opts)
	c.rowVar = "v_row"
	return c
}

func TestCompileExpr_Rendering(t *testing.T) {
	testCases := []struct {
		name string
		expr schema.Expr
		want string
	}{
		{
			name: "row field",
			expr: &schema.FieldRef{Name: "status"},
			want: "v_row.status",
		},
		{
			name: "ref field renders its fk column",
			expr: &schema.FieldRef{Name: "company"},
			want: "v_row.fk_company",
		},
		{
			name: "param",
			expr: &schema.ParamRef{Name: "notes"},
			want: "p_notes",
		},
		{
			name: "string literal quoted",
			expr: &schema.Literal{Value: "it's"},
			want: "'it''s'",
		},
		{
			name: "comparison",
			expr: &schema.Compare{
				Op:    schema.OpEq,
				Left:  &schema.FieldRef{Name: "status"},
				Right: &schema.Literal{Value: "lead"},
			},
			want: "v_row.status = 'lead'",
		},
		{
			name: "in list",
			expr: &schema.Compare{
				Op:   schema.OpIn,
				Left: &schema.FieldRef{Name: "status"},
				Right: &schema.List{Items: []schema.Expr{
					&schema.Literal{Value: "lead"},
					&schema.Literal{Value: "prospect"},
				}},
			},
			want: "v_row.status IN ('lead', 'prospect')",
		},
		{
			name: "conjunction",
			expr: &schema.And{Operands: []schema.Expr{
				&schema.Compare{Op: schema.OpEq, Left: &schema.FieldRef{Name: "status"}, Right: &schema.Literal{Value: "lead"}},
				&schema.Compare{Op: schema.OpGe, Left: &schema.FieldRef{Name: "score"}, Right: &schema.ParamRef{Name: "threshold"}},
			}},
			want: "(v_row.status = 'lead' AND v_row.score >= p_threshold)",
		},
		{
			name: "empty conjunction is vacuously true",
			expr: &schema.And{},
			want: "TRUE",
		},
		{
			name: "empty disjunction is vacuously false",
			expr: &schema.Or{},
			want: "FALSE",
		},
		{
			name: "negation",
			expr: &schema.Not{Operand: &schema.FieldRef{Name: "status"}},
			want: "NOT (v_row.status)",
		},
		{
			name: "nullary builtin shorthand",
			expr: &schema.FuncCall{Name: "now"},
			want: "now()",
		},
		{
			name: "caller renders the context parameter",
			expr: &schema.FuncCall{Name: "caller"},
			want: "p_caller_id",
		},
		{
			name: "concat folds to string concatenation",
			expr: &schema.FuncCall{Name: "concat", Args: []schema.Expr{
				&schema.FieldRef{Name: "name"},
				&schema.Literal{Value: " (archived)"},
			}},
			want: "(v_row.name || ' (archived)')",
		},
		{
			name: "array_length maps to jsonb",
			expr: &schema.FuncCall{Name: "array_length", Args: []schema.Expr{
				&schema.FieldRef{Name: "tags"},
			}},
			want: "jsonb_array_length(v_row.tags)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := exprTestContext(t)
			sql, _, err := c.compileExpr(tc.expr, rowMode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sql)
		})
	}
}

func TestCompileExpr_ColumnMode(t *testing.T) {
	c := exprTestContext(t)
	expr := &schema.Compare{
		Op:    schema.OpEq,
		Left:  &schema.FieldRef{Name: "status"},
		Right: &schema.Literal{Value: "lead"},
	}
	sql, _, err := c.compileExpr(expr, columnMode)
	require.NoError(t, err)
	assert.Equal(t, "status = 'lead'", sql)
}

func TestCompileExpr_LoopElementAccess(t *testing.T) {
	c := exprTestContext(t)
	c.pushScope()
	_, err := c.bind("line", "JSONB", bindElement)
	require.NoError(t, err)

	expr := &schema.Compare{
		Op:    schema.OpGt,
		Left:  &schema.FieldRef{Name: "qty", Of: "line"},
		Right: &schema.Literal{Value: int64(0)},
	}
	sql, refs, err := c.compileExpr(expr, rowMode)
	require.NoError(t, err)
	// Member access yields text; the integer comparison picks up a cast.
	assert.Equal(t, "(v_line->>'qty')::INTEGER > 0", sql)
	assert.False(t, refs.rowAndParamsOnly())
}

func TestCompileExpr_RefSet(t *testing.T) {
	c := exprTestContext(t)
	expr := &schema.And{Operands: []schema.Expr{
		&schema.Compare{Op: schema.OpEq, Left: &schema.FieldRef{Name: "status"}, Right: &schema.Literal{Value: "lead"}},
		&schema.Compare{Op: schema.OpGe, Left: &schema.FieldRef{Name: "score"}, Right: &schema.ParamRef{Name: "threshold"}},
	}}
	_, refs, err := c.compileExpr(expr, rowMode)
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "score"}, refs.Fields)
	assert.Equal(t, []string{"threshold"}, refs.Params)
	assert.True(t, refs.rowAndParamsOnly())
}

func TestCompileExpr_Errors(t *testing.T) {
	testCases := []struct {
		name string
		expr schema.Expr
		want string
	}{
		{
			name: "unknown field",
			expr: &schema.FieldRef{Name: "ghost"},
			want: `entity Contact has no field "ghost"`,
		},
		{
			name: "undeclared parameter",
			expr: &schema.ParamRef{Name: "ghost"},
			want: `reference to undeclared parameter "ghost"`,
		},
		{
			name: "undeclared binding",
			expr: &schema.BindingRef{Name: "ghost"},
			want: `reference to undeclared binding "ghost"`,
		},
		{
			name: "bare list",
			expr: &schema.List{},
			want: "a list is only valid as the right side of IN",
		},
		{
			name: "in with empty list",
			expr: &schema.Compare{
				Op:    schema.OpIn,
				Left:  &schema.FieldRef{Name: "status"},
				Right: &schema.List{},
			},
			want: "IN requires a non-empty list",
		},
		{
			name: "unknown function",
			expr: &schema.FuncCall{Name: "frobnicate"},
			want: `unknown function "frobnicate"`,
		},
		{
			name: "builtin arity",
			expr: &schema.FuncCall{Name: "length"},
			want: `function "length": wrong argument count 0`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := exprTestContext(t)
			_, _, err := c.compileExpr(tc.expr, rowMode)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
