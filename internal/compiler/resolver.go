package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// Resolver performs Trinity resolution at compile time: given an entity and
// the SQL expression of an externally supplied identifier, it emits the
// lookup that turns it into the internal fast-join key.
//
// Resolutions are memoized per control-flow scope, pushed and popped in
// lockstep with the binding scopes: a lookup emitted inside a branch or
// loop body has not necessarily run on a sibling branch or after the loop,
// so only resolutions visible in an enclosing scope count as done. The pk
// variable itself is shared across all uses of the same (entity, id). A
// failed resolution raises not_found, short-circuiting the whole action
// before any later step runs.
type Resolver struct {
	opts   Options
	varFor map[string]string // (entity, id SQL) -> pk variable
	scopes []map[string]bool // keys certainly resolved on the current path
}

func newResolver(opts Options) *Resolver {
	return &Resolver{opts: opts, varFor: map[string]string{}, scopes: []map[string]bool{{}}}
}

func (r *Resolver) pushScope() {
	r.scopes = append(r.scopes, map[string]bool{})
}

func (r *Resolver) popScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) resolvedOnPath(key string) bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if r.scopes[i][key] {
			return true
		}
	}
	return false
}

// lookupFn names the generated helper that maps an external id to the
// internal key, e.g. crm.contact_pk.
func lookupFn(e *schema.EntityDefinition) string {
	return fmt.Sprintf("%s.%s_pk", sqlName(e.Schema), sqlName(e.Name))
}

// Resolve returns the variable holding the internal key for idSQL. When the
// resolution already ran on every path reaching this point it returns no
// statements; otherwise it returns the statements to emit in place.
//
// stable marks an id expression that evaluates to the same value throughout
// one invocation (parameters and constants only). Stable lookups that may
// already have run on another path, or would repeat per loop iteration, sit
// behind a NULL guard so the invocation performs at most one lookup.
// Unstable ids (loop elements, row fields) always re-run the lookup: the
// variable may hold the key of a different id by now.
func (r *Resolver) Resolve(c *ActionContext, e *schema.EntityDefinition, idSQL string, stable bool) (pkVar string, stmts []string) {
	key := e.Name + "\x00" + idSQL
	pkVar, declared := r.varFor[key]
	if declared && r.resolvedOnPath(key) {
		return pkVar, nil
	}
	if !declared {
		pkVar = c.declare("v_"+sqlName(e.Name)+"_pk", "INTEGER", "")
		r.varFor[key] = pkVar
	}
	r.scopes[len(r.scopes)-1][key] = true

	lookup := fmt.Sprintf("%s := %s(%s);", pkVar, lookupFn(e), idSQL)
	if stable && (declared || len(r.scopes) > 1) {
		stmts = []string{
			fmt.Sprintf("IF %s IS NULL THEN", pkVar),
			"    " + lookup,
			"END IF;",
		}
	} else {
		stmts = []string{lookup}
	}
	return pkVar, append(stmts,
		fmt.Sprintf("IF %s IS NULL THEN", pkVar),
		fmt.Sprintf("    RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = '%s',", sqlstateNotFound, ErrNotFound),
		fmt.Sprintf("        DETAIL = format('%s %%s does not exist', %s);", e.Name, idSQL),
		"END IF;",
	)
}
