package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// compileValidate emits the runtime predicate check. A false predicate
// raises with the caller-supplied code as the concrete error_code; the step
// never mutates state.
//
// Predicates that depend only on the current row and parameters are also
// recorded as preconditions: subsequent mutating statements on the same
// entity repeat them in their row-matching condition (see precondition).
func (c *ActionContext) compileValidate(v *schema.Validate) ([]string, error) {
	if v.Predicate == nil {
		return nil, c.errf("validate requires a predicate")
	}
	if v.ErrorCode == "" {
		return nil, c.errf("validate requires an error code")
	}

	sql, refs, err := c.compileExpr(v.Predicate, rowMode)
	if err != nil {
		return nil, err
	}

	message := v.Message
	if message == "" {
		message = fmt.Sprintf("validation %s failed", v.ErrorCode)
	}

	// IS NOT TRUE rather than NOT: a NULL field makes the predicate NULL,
	// which must abort with the validate code here, not fall through and
	// resurface as the next mutation's zero-rows not_found.
	lines := []string{
		fmt.Sprintf("IF (%s) IS NOT TRUE THEN", sql),
		fmt.Sprintf("    RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = %s,",
			sqlstateValidationFailed, quoteLiteral(v.ErrorCode)),
		fmt.Sprintf("        DETAIL = %s;", quoteLiteral(message)),
		"END IF;",
	}

	if len(refs.Fields) > 0 && refs.rowAndParamsOnly() {
		c.addPrecondition(c.entity.Name, v.Predicate)
	}
	return lines, nil
}
