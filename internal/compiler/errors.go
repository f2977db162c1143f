package compiler

import "fmt"

// CompileError represents a compilation error with enough context to point
// at the offending definition. Scope violations (referencing an undeclared
// binding, setting a reserved column, calling an unknown procedure) are
// always compile-time errors, never deferred to runtime.
type CompileError struct {
	Entity  string
	Action  string
	Path    string // step path within the action, e.g. "steps[2].then[0]"
	Message string
}

func (e *CompileError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("%s.%s: %s: %s", e.Entity, e.Action, e.Path, e.Message)
	case e.Action != "":
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Action, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
}

func (c *ActionContext) errf(format string, args ...any) *CompileError {
	return &CompileError{
		Entity:  c.entity.Name,
		Action:  c.action.Name,
		Path:    c.path,
		Message: fmt.Sprintf(format, args...),
	}
}
