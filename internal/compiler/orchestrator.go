package compiler

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/schema"
)

// CompiledAction is the product of compiling one action: a complete CREATE
// OR REPLACE FUNCTION statement plus the metadata a deployer or schema
// assembler needs.
type CompiledAction struct {
	EntityName   string
	ActionName   string
	FunctionName string
	// Signature lists the rendered parameter declarations in positional
	// order.
	Signature []string
	// SQL is the full function definition.
	SQL string
	// InputTypeDDL declares the composite input type; empty for actions
	// without declared parameters.
	InputTypeDDL string
}

// Artifact is the full compilation output of a bundle, in deployment
// order: envelope prelude, per-entity helpers, then one function per
// action.
type Artifact struct {
	Prelude []string
	Helpers []string
	Actions []CompiledAction
}

// Orchestrator compiles a validated bundle. Compilation is pure: the same
// bundle and options always produce byte-identical output, and nothing is
// executed against a database.
type Orchestrator struct {
	bundle *schema.Bundle
	opts   Options
}

func New(bundle *schema.Bundle, opts Options) *Orchestrator {
	opts.ApplyDefaults()
	return &Orchestrator{bundle: bundle, opts: opts}
}

// Compile produces the artifact for every entity and action in the bundle.
// The first compile error aborts; validation errors in the definitions
// should have been collected by schema.Bundle.Validate beforehand.
func (o *Orchestrator) Compile() (*Artifact, error) {
	art := &Artifact{Prelude: EnvelopePrelude(o.opts)}
	for i := range o.bundle.Entities {
		entity := &o.bundle.Entities[i]
		art.Helpers = append(art.Helpers, EntityHelpersDDL(entity, o.opts)...)
		for j := range entity.Actions {
			compiled, err := o.CompileAction(entity.Name, entity.Actions[j].Name)
			if err != nil {
				return nil, err
			}
			art.Actions = append(art.Actions, *compiled)
		}
	}
	return art, nil
}

// CompileAction compiles one action into its function definition.
func (o *Orchestrator) CompileAction(entityName, actionName string) (*CompiledAction, error) {
	entity := o.bundle.Entity(entityName)
	if entity == nil {
		return nil, &CompileError{Entity: entityName, Action: actionName, Message: "unknown entity"}
	}
	action := entity.Action(actionName)
	if action == nil {
		return nil, &CompileError{Entity: entityName, Action: actionName, Message: "unknown action"}
	}

	c := newActionContext(o.bundle, entity, action, o.opts)

	prologue := requiredGuards(entity, action)
	if actionNeedsEntityID(entity, action) {
		idParam := "p_" + sqlName(entity.Name) + "_id"
		pkVar, stmts := c.resolver.Resolve(c, entity, idParam, true)
		c.primaryPK = pkVar
		c.primaryID = idParam
		prologue = append(prologue, stmts...)

		if actionReadsRow(entity, action) {
			c.rowVar = c.declare("v_row", o.opts.tableName(entity)+"%ROWTYPE", "")
			prologue = append(prologue, fmt.Sprintf("SELECT * INTO %s FROM %s WHERE %s = %s;",
				c.rowVar, o.opts.tableName(entity), pkColumn(entity), pkVar))
		}
	}

	body, err := c.compileSteps(action.Steps, "steps")
	if err != nil {
		return nil, err
	}

	signature := o.renderSignature(entity, action)
	sql := o.renderFunction(c, signature, prologue, body)

	return &CompiledAction{
		EntityName:   entity.Name,
		ActionName:   action.Name,
		FunctionName: functionName(entity, action),
		Signature:    signature,
		SQL:          sql,
		InputTypeDDL: InputTypeDDL(entity, action),
	}, nil
}

// actionReadsRow reports whether any expression in the action reads the
// current row, which decides whether the prologue loads it.
func actionReadsRow(e *schema.EntityDefinition, a *schema.ActionDefinition) bool {
	return rowReadWalk(a.Steps)
}

func rowReadWalk(steps []schema.Step) bool {
	for _, step := range steps {
		switch st := step.(type) {
		case *schema.Validate:
			if exprReadsRow(st.Predicate) {
				return true
			}
		case *schema.Update:
			if exprReadsRow(st.TargetID) || assignmentsReadRow(st.Set) {
				return true
			}
		case *schema.Insert:
			if exprReadsRow(st.ID) || exprReadsRow(st.Identifier) || assignmentsReadRow(st.Set) {
				return true
			}
		case *schema.Delete:
			if exprReadsRow(st.TargetID) {
				return true
			}
		case *schema.Conditional:
			if exprReadsRow(st.Predicate) || rowReadWalk(st.Then) || rowReadWalk(st.Else) {
				return true
			}
		case *schema.Foreach:
			if exprReadsRow(st.Source) || rowReadWalk(st.Body) {
				return true
			}
		case *schema.Call:
			if anyReadsRow(st.Args) {
				return true
			}
		case *schema.Notify:
			if exprReadsRow(st.Payload) {
				return true
			}
		}
	}
	return false
}

// renderSignature produces the positional parameter declarations: the
// implicit entity id for row-bound actions, the declared parameters in
// definition order, then the ambient tenant and caller context. PostgreSQL
// requires every parameter after a defaulted one to carry a default, so
// once an optional parameter appears the rest default to NULL too;
// required-ness is enforced by the prologue guards instead.
func (o *Orchestrator) renderSignature(entity *schema.EntityDefinition, action *schema.ActionDefinition) []string {
	var params []string
	hasDefault := false

	if actionNeedsEntityID(entity, action) {
		params = append(params, fmt.Sprintf("p_%s_id UUID", sqlName(entity.Name)))
	}
	for _, p := range action.Params {
		decl := fmt.Sprintf("p_%s %s", sqlName(p.Name), pgType(p.Type))
		if !p.Required {
			hasDefault = true
		}
		if hasDefault {
			decl += " DEFAULT NULL"
		}
		params = append(params, decl)
	}

	contextSuffix := ""
	if hasDefault {
		contextSuffix = " DEFAULT NULL"
	}
	params = append(params,
		"p_tenant_id UUID"+contextSuffix,
		"p_caller_id UUID"+contextSuffix,
	)
	return params
}

// requiredGuards emits the prologue null checks: caller identity is always
// required (the audit stamp depends on it), tenant context is required for
// multi-tenant entities, and every required declared parameter must be
// present.
func requiredGuards(entity *schema.EntityDefinition, action *schema.ActionDefinition) []string {
	guard := func(param, what string) []string {
		return []string{
			fmt.Sprintf("IF %s IS NULL THEN", param),
			fmt.Sprintf("    RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = '%s',",
				sqlstateValidationFailed, ErrValidationFailed),
			fmt.Sprintf("        DETAIL = '%s is required';", what),
			"END IF;",
		}
	}

	lines := guard("p_caller_id", "caller context")
	if entity.MultiTenant {
		lines = append(lines, guard("p_tenant_id", "tenant context")...)
	}
	for _, p := range action.Params {
		if p.Required {
			lines = append(lines, guard("p_"+sqlName(p.Name), "parameter "+p.Name)...)
		}
	}
	return lines
}

func (o *Orchestrator) renderFunction(c *ActionContext, signature, prologue, body []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s(\n", functionName(c.entity, c.action))
	for i, p := range signature {
		sep := ","
		if i == len(signature)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %s%s\n", p, sep)
	}
	fmt.Fprintf(&b, ")\nRETURNS %s.mutation_result\nLANGUAGE plpgsql\nAS $action$\n", o.opts.EnvelopeSchema)

	b.WriteString("DECLARE\n")
	fmt.Fprintf(&b, "    v_result %s.mutation_result;\n", o.opts.EnvelopeSchema)
	for _, d := range c.decls {
		if d.initial != "" {
			fmt.Fprintf(&b, "    %s %s := %s;\n", d.name, d.pgType, d.initial)
		} else {
			fmt.Fprintf(&b, "    %s %s;\n", d.name, d.pgType)
		}
	}
	b.WriteString("    v_impacts JSONB := '[]'::JSONB;\n")
	b.WriteString("    v_notifications JSONB := '[]'::JSONB;\n")
	b.WriteString("    v_object JSONB;\n")
	b.WriteString("    v_detail TEXT;\n")

	b.WriteString("BEGIN\n")
	for _, line := range indent(prologue, 1) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range indent(body, 1) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range indent(c.successEpilogue(), 1) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("EXCEPTION\n")
	for _, line := range indent(exceptionHandlers(o.opts), 1) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("END;\n$action$;")
	return b.String()
}
