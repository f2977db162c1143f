package compiler

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/schema"
)

// compileCall dispatches to either a sibling compiled action
// ("Entity.action") or a declared helper (schema-qualified name). Anything
// else is a compile-time error; there is no dynamic dispatch in generated
// code.
func (c *ActionContext) compileCall(call *schema.Call) ([]string, error) {
	if entity, action, ok := c.calleeAction(call.Procedure); ok {
		return c.compileActionCall(call, entity, action)
	}
	if helper := c.bundle.Helper(call.Procedure); helper != nil {
		return c.compileHelperCall(call, helper)
	}
	return nil, c.errf("call target %q is neither a bundle action nor a declared helper", call.Procedure)
}

func (c *ActionContext) calleeAction(procedure string) (*schema.EntityDefinition, *schema.ActionDefinition, bool) {
	entityName, actionName, found := strings.Cut(procedure, ".")
	if !found {
		return nil, nil, false
	}
	entity := c.bundle.Entity(entityName)
	if entity == nil {
		return nil, nil, false
	}
	action := entity.Action(actionName)
	if action == nil {
		return nil, nil, false
	}
	return entity, action, true
}

// compileActionCall invokes a sibling compiled action. The callee runs in
// the same transaction, so its mutations participate in the caller's
// atomicity. A callee error envelope is escalated: its error_code
// propagates verbatim, which aborts and rolls back the caller too.
// On success, the callee's impacts and notification intents are folded into
// the caller's accumulators.
func (c *ActionContext) compileActionCall(call *schema.Call, entity *schema.EntityDefinition, action *schema.ActionDefinition) ([]string, error) {
	needsID := actionNeedsEntityID(entity, action)
	maxArgs := len(action.Params)
	minArgs := 0
	for _, p := range action.Params {
		if p.Required {
			minArgs++
		}
	}
	if needsID {
		maxArgs++
		minArgs++
	}
	if len(call.Args) < minArgs || len(call.Args) > maxArgs {
		return nil, c.errf("call to %s passes %d argument(s), want %d to %d",
			call.Procedure, len(call.Args), minArgs, maxArgs)
	}

	// Named-argument notation: positional passing would mis-bind the
	// appended context arguments whenever the callee has omitted trailing
	// optionals. Arguments compile against the callee's parameter types.
	names := make([]string, 0, maxArgs)
	types := make([]string, 0, maxArgs)
	if needsID {
		names = append(names, "p_"+sqlName(entity.Name)+"_id")
		types = append(types, "UUID")
	}
	for _, p := range action.Params {
		names = append(names, "p_"+sqlName(p.Name))
		types = append(types, pgType(p.Type))
	}
	parts := make([]string, 0, len(call.Args)+2)
	for i, e := range call.Args {
		arg, err := c.compileTyped(e, rowMode, types[i])
		if err != nil {
			return nil, err
		}
		parts = append(parts, names[i]+" => "+arg)
	}
	// Tenant and caller context always flow through unchanged.
	parts = append(parts, "p_tenant_id => p_tenant_id", "p_caller_id => p_caller_id")

	resultType := c.opts.EnvelopeSchema + ".mutation_result"
	var resultVar string
	if call.ResultBinding != "" {
		bound, err := c.bind(call.ResultBinding, resultType, bindValue)
		if err != nil {
			return nil, err
		}
		resultVar = bound
	} else {
		resultVar = c.declare("v_call_result", resultType, "")
	}

	return []string{
		fmt.Sprintf("%s := %s(%s);", resultVar, functionName(entity, action), strings.Join(parts, ", ")),
		fmt.Sprintf("IF NOT (%s).success THEN", resultVar),
		fmt.Sprintf("    RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = (%s).error_code,",
			sqlstateCallFailed, resultVar),
		fmt.Sprintf("        DETAIL = (%s).error_message;", resultVar),
		"END IF;",
		fmt.Sprintf("v_impacts := v_impacts || COALESCE((%s).impacts, '[]'::JSONB);", resultVar),
		fmt.Sprintf("v_notifications := v_notifications || COALESCE((%s).extra_metadata->'notifications', '[]'::JSONB);", resultVar),
	}, nil
}

// compileHelperCall invokes a declared external procedure. Helpers do not
// return envelopes; whatever they raise surfaces through the caller's
// exception block.
func (c *ActionContext) compileHelperCall(call *schema.Call, helper *schema.HelperDefinition) ([]string, error) {
	if len(call.Args) != len(helper.Args) {
		return nil, c.errf("call to %s passes %d argument(s), want %d",
			call.Procedure, len(call.Args), len(helper.Args))
	}

	args := make([]string, 0, len(call.Args))
	for i, e := range call.Args {
		arg, err := c.compileTyped(e, rowMode, pgType(helper.Args[i]))
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	invocation := fmt.Sprintf("%s(%s)", helper.Name, strings.Join(args, ", "))

	if call.ResultBinding == "" {
		return []string{fmt.Sprintf("PERFORM %s;", invocation)}, nil
	}
	resultVar, err := c.bind(call.ResultBinding, pgType(helper.Returns), bindValue)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%s := %s;", resultVar, invocation)}, nil
}

// compileNotify appends a notification intent to the accumulator surfaced
// through extra_metadata. Nothing is dispatched synchronously; a failed
// action surfaces no intents because the envelope discards the accumulator
// on error.
func (c *ActionContext) compileNotify(n *schema.Notify) ([]string, error) {
	if n.Event == "" {
		return nil, c.errf("notify requires an event name")
	}

	payload := "'{}'::JSONB"
	if n.Payload != nil {
		sql, _, err := c.compileExpr(n.Payload, rowMode)
		if err != nil {
			return nil, err
		}
		payload = fmt.Sprintf("to_jsonb(%s)", sql)
	}

	return []string{fmt.Sprintf(
		"v_notifications := v_notifications || jsonb_build_object('event', %s, 'payload', %s);",
		quoteLiteral(n.Event), payload)}, nil
}
