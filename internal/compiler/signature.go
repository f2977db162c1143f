package compiler

import "github.com/specforge/specforge/internal/schema"

// actionNeedsEntityID reports whether an action operates on an existing row
// of its entity, in which case the generated function takes a leading
// p_{entity}_id parameter and the prologue resolves and loads the row.
// Insert-only actions (no row reads, no implicit-target mutations) take no
// entity id.
func actionNeedsEntityID(e *schema.EntityDefinition, a *schema.ActionDefinition) bool {
	return stepsNeedRow(e, a.Steps)
}

func stepsNeedRow(e *schema.EntityDefinition, steps []schema.Step) bool {
	for _, step := range steps {
		switch st := step.(type) {
		case *schema.Validate:
			if exprReadsRow(st.Predicate) {
				return true
			}
		case *schema.Update:
			if (st.Target == "" || st.Target == e.Name) && st.TargetID == nil {
				return true
			}
			if exprReadsRow(st.TargetID) || assignmentsReadRow(st.Set) {
				return true
			}
		case *schema.Insert:
			if exprReadsRow(st.ID) || exprReadsRow(st.Identifier) || assignmentsReadRow(st.Set) {
				return true
			}
		case *schema.Delete:
			if (st.Target == "" || st.Target == e.Name) && st.TargetID == nil {
				return true
			}
			if exprReadsRow(st.TargetID) {
				return true
			}
		case *schema.Conditional:
			if exprReadsRow(st.Predicate) || stepsNeedRow(e, st.Then) || stepsNeedRow(e, st.Else) {
				return true
			}
		case *schema.Foreach:
			if exprReadsRow(st.Source) || stepsNeedRow(e, st.Body) {
				return true
			}
		case *schema.Call:
			for _, arg := range st.Args {
				if exprReadsRow(arg) {
					return true
				}
			}
		case *schema.Notify:
			if exprReadsRow(st.Payload) {
				return true
			}
		}
	}
	return false
}

func assignmentsReadRow(set []schema.Assignment) bool {
	for _, a := range set {
		if exprReadsRow(a.Value) {
			return true
		}
	}
	return false
}

// exprReadsRow reports whether the expression references a field of the
// current row (as opposed to loop-element fields, parameters and bindings).
func exprReadsRow(e schema.Expr) bool {
	switch x := e.(type) {
	case nil:
		return false
	case *schema.FieldRef:
		return x.Of == ""
	case *schema.List:
		return anyReadsRow(x.Items)
	case *schema.Compare:
		return exprReadsRow(x.Left) || exprReadsRow(x.Right)
	case *schema.And:
		return anyReadsRow(x.Operands)
	case *schema.Or:
		return anyReadsRow(x.Operands)
	case *schema.Not:
		return exprReadsRow(x.Operand)
	case *schema.FuncCall:
		return anyReadsRow(x.Args)
	default:
		return false
	}
}

func anyReadsRow(exprs []schema.Expr) bool {
	for _, e := range exprs {
		if exprReadsRow(e) {
			return true
		}
	}
	return false
}
