package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// bindingKind distinguishes how a local binding renders in expressions.
type bindingKind int

const (
	// bindElement: a Foreach loop variable holding one JSONB element.
	bindElement bindingKind = iota
	// bindValue: a Call result holding a typed scalar or envelope.
	bindValue
)

type localBinding struct {
	sqlVar string
	pgType string
	kind   bindingKind
}

// decl is one DECLARE-block entry. Declaration order is the order bindings
// appear in the definition, which keeps compilation deterministic.
type decl struct {
	name    string
	pgType  string
	initial string // optional ":= ..." initializer
}

// precondition is a Validate predicate that must be repeated in the
// row-matching condition of subsequent mutating statements on the same
// entity. This is the compiler's substitute for optimistic concurrency
// control: a concurrent writer that invalidates the predicate between
// Validate and Update makes the Update match zero rows (not_found) instead
// of silently overwriting unobserved state.
type precondition struct {
	entity string
	expr   schema.Expr
}

// ActionContext is the compile-time state threaded through one action's
// compilation: the bindings table, the entity scope, the declaration list
// and the identity-resolution memo. It exists only during compilation of
// one action and is discarded once the CompiledAction is produced; no state
// is shared across compilations.
type ActionContext struct {
	bundle *schema.Bundle
	opts   Options
	entity *schema.EntityDefinition
	action *schema.ActionDefinition

	path string // current step path, for error reporting

	scopes   []map[string]localBinding
	decls    []decl
	declSeen map[string]bool

	resolver *Resolver

	preconds []precondition

	// rowVar holds the primary row record variable once the prologue has
	// loaded it; empty when the action never reads the current row.
	rowVar string
	// primaryPK names the variable holding the primary entity's resolved
	// (or freshly inserted) internal key.
	primaryPK string
	// primaryID is the SQL expression for the primary external id, used by
	// the envelope to re-read the row's final state.
	primaryID string
}

func newActionContext(bundle *schema.Bundle, entity *schema.EntityDefinition, action *schema.ActionDefinition, opts Options) *ActionContext {
	return &ActionContext{
		bundle: bundle,
		opts:   opts,
		entity: entity,
		action: action,
		scopes: []map[string]localBinding{{}},
		// The envelope accumulators are declared by the function renderer,
		// not through declare; reserving their names here keeps bindings
		// from colliding with them.
		declSeen: map[string]bool{
			"v_result": true, "v_impacts": true, "v_notifications": true,
			"v_object": true, "v_detail": true,
		},
		resolver: newResolver(opts),
	}
}

// at runs fn with the step path temporarily extended, so CompileErrors point
// at the offending step.
func (c *ActionContext) at(segment string, fn func() error) error {
	prev := c.path
	if prev == "" {
		c.path = segment
	} else {
		c.path = prev + "." + segment
	}
	err := fn()
	c.path = prev
	return err
}

// pushScope opens a branch or loop scope. The resolution memo follows the
// binding scopes: what a branch resolves must not be assumed outside it.
func (c *ActionContext) pushScope() {
	c.scopes = append(c.scopes, map[string]localBinding{})
	c.resolver.pushScope()
}

func (c *ActionContext) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.resolver.popScope()
}

// declare registers a DECLARE-block variable, disambiguating collisions
// with a numeric suffix. Names are stable across recompilations because
// they depend only on declaration order.
func (c *ActionContext) declare(base, pgType, initial string) string {
	name := base
	for n := 2; c.declSeen[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	c.declSeen[name] = true
	c.decls = append(c.decls, decl{name: name, pgType: pgType, initial: initial})
	return name
}

// bind introduces a named binding in the innermost scope and declares its
// backing variable. Rebinding a name visible in any enclosing scope is a
// compile-time error; bindings declared inside a branch do not leak
// outside it because the branch pops its scope.
func (c *ActionContext) bind(name, pgType string, kind bindingKind) (string, error) {
	if _, ok := c.lookup(name); ok {
		return "", c.errf("binding %q is already declared", name)
	}
	if c.paramByName(name) != nil {
		return "", c.errf("binding %q shadows a declared parameter", name)
	}
	sqlVar := c.declare("v_"+sqlName(name), pgType, "")
	c.scopes[len(c.scopes)-1][name] = localBinding{sqlVar: sqlVar, pgType: pgType, kind: kind}
	return sqlVar, nil
}

func (c *ActionContext) lookup(name string) (localBinding, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if b, ok := c.scopes[i][name]; ok {
			return b, true
		}
	}
	return localBinding{}, false
}

func (c *ActionContext) paramByName(name string) *schema.ParamDefinition {
	for i := range c.action.Params {
		if c.action.Params[i].Name == name {
			return &c.action.Params[i]
		}
	}
	return nil
}

// targetEntity resolves a step's target entity name (empty = the action's
// primary entity).
func (c *ActionContext) targetEntity(name string) (*schema.EntityDefinition, error) {
	if name == "" {
		return c.entity, nil
	}
	e := c.bundle.Entity(name)
	if e == nil {
		return nil, c.errf("unknown target entity %q", name)
	}
	return e, nil
}

// addPrecondition records a repeatable Validate predicate for the given
// entity.
func (c *ActionContext) addPrecondition(entity string, expr schema.Expr) {
	c.preconds = append(c.preconds, precondition{entity: entity, expr: expr})
}

// preconditionsFor returns the active preconditions for an entity.
func (c *ActionContext) preconditionsFor(entity string) []schema.Expr {
	var out []schema.Expr
	for _, p := range c.preconds {
		if p.entity == entity {
			out = append(out, p.expr)
		}
	}
	return out
}

// clearPreconditions drops an entity's preconditions after its first
// mutation. The first mutating statement both verified the preconditions
// and took a row lock held until commit, so later statements in the same
// action no longer race against concurrent writers.
func (c *ActionContext) clearPreconditions(entity string) {
	kept := c.preconds[:0]
	for _, p := range c.preconds {
		if p.entity != entity {
			kept = append(kept, p)
		}
	}
	c.preconds = kept
}
