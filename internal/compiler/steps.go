package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// compileSteps compiles an ordered step sequence into body lines, threading
// the context depth-first. The switch over the sealed Step union is
// exhaustive; there is no runtime "unknown step" fallback.
func (c *ActionContext) compileSteps(steps []schema.Step, base string) ([]string, error) {
	var lines []string
	for i, step := range steps {
		segment := fmt.Sprintf("%s[%d]", base, i)
		err := c.at(segment, func() error {
			var frag []string
			var err error
			switch st := step.(type) {
			case *schema.Validate:
				frag, err = c.compileValidate(st)
			case *schema.Update:
				frag, err = c.compileUpdate(st)
			case *schema.Insert:
				frag, err = c.compileInsert(st)
			case *schema.Delete:
				frag, err = c.compileDelete(st)
			case *schema.Conditional:
				frag, err = c.compileConditional(st, segment)
			case *schema.Foreach:
				frag, err = c.compileForeach(st, segment)
			case *schema.Call:
				frag, err = c.compileCall(st)
			case *schema.Notify:
				frag, err = c.compileNotify(st)
			default:
				err = c.errf("unhandled step kind %T", step)
			}
			if err != nil {
				return err
			}
			lines = append(lines, frag...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// indent prefixes every non-empty line with n levels of four spaces.
func indent(lines []string, n int) []string {
	prefix := ""
	for range n {
		prefix += "    "
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" {
			out[i] = ""
			continue
		}
		out[i] = prefix + line
	}
	return out
}
