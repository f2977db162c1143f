package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// compileConditional emits a plain IF/ELSE. Bindings introduced inside a
// branch are branch-scoped and unavailable after END IF.
//
// Preconditions are joined conservatively: a Validate recorded inside one
// branch does not hold on the other path, so only preconditions surviving
// every branch stay active afterwards.
func (c *ActionContext) compileConditional(cond *schema.Conditional, segment string) ([]string, error) {
	if cond.Predicate == nil {
		return nil, c.errf("if requires a predicate")
	}
	if len(cond.Then) == 0 {
		return nil, c.errf("if requires at least one step in then")
	}

	sql, _, err := c.compileExpr(cond.Predicate, rowMode)
	if err != nil {
		return nil, err
	}

	before := append([]precondition{}, c.preconds...)

	c.pushScope()
	thenLines, err := c.compileSteps(cond.Then, segment+".then")
	c.popScope()
	if err != nil {
		return nil, err
	}
	afterThen := c.preconds

	c.preconds = append([]precondition{}, before...)
	var elseLines []string
	if len(cond.Else) > 0 {
		c.pushScope()
		elseLines, err = c.compileSteps(cond.Else, segment+".else")
		c.popScope()
		if err != nil {
			return nil, err
		}
	}
	afterElse := c.preconds

	c.preconds = intersectPreconds(intersectPreconds(before, afterThen), afterElse)

	lines := []string{fmt.Sprintf("IF %s THEN", sql)}
	lines = append(lines, indent(thenLines, 1)...)
	if len(elseLines) > 0 {
		lines = append(lines, "ELSE")
		lines = append(lines, indent(elseLines, 1)...)
	}
	lines = append(lines, "END IF;")
	return lines, nil
}

// compileForeach iterates a JSONB array, binding each element to the loop
// variable. A NULL source iterates zero times. The loop variable is scoped
// to the body; referencing it after END LOOP is a compile-time error.
func (c *ActionContext) compileForeach(f *schema.Foreach, segment string) ([]string, error) {
	if f.LoopVar == "" {
		return nil, c.errf("foreach requires a loop variable")
	}
	if len(f.Body) == 0 {
		return nil, c.errf("foreach requires at least one step in do")
	}

	srcSQL, _, err := c.compileExpr(f.Source, rowMode)
	if err != nil {
		return nil, err
	}

	before := append([]precondition{}, c.preconds...)

	c.pushScope()
	loopVar, err := c.bind(f.LoopVar, "JSONB", bindElement)
	if err != nil {
		c.popScope()
		return nil, err
	}
	body, err := c.compileSteps(f.Body, segment+".do")
	c.popScope()
	if err != nil {
		return nil, err
	}

	// The body may run zero times; nothing it validated holds afterwards.
	c.preconds = intersectPreconds(before, c.preconds)

	lines := []string{fmt.Sprintf(
		"FOR %s IN SELECT value FROM jsonb_array_elements(COALESCE(%s, '[]'::JSONB)) LOOP",
		loopVar, srcSQL)}
	lines = append(lines, indent(body, 1)...)
	lines = append(lines, "END LOOP;")
	return lines, nil
}

// intersectPreconds keeps the preconditions of a that are also present in b.
func intersectPreconds(a, b []precondition) []precondition {
	var out []precondition
	for _, p := range a {
		for _, q := range b {
			if p.entity == q.entity && p.expr == q.expr {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
