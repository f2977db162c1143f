package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError reports a malformed definition file with its source position.
type LoadError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// loader carries the file name for error reporting while walking the
// document tree.
type loader struct {
	file string
}

func (l *loader) errf(n *yaml.Node, format string, args ...any) error {
	e := &LoadError{File: l.file, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line = n.Line
		e.Column = n.Column
	}
	return e
}

// LoadBundle reads and decodes a definition bundle from a YAML file.
//
// The bundle format is structural: expressions and steps are nested
// mappings, not a surface syntax. Mapping order is preserved, because
// declaration order drives generated parameter and column order.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return ParseBundle(data, path)
}

// ParseBundle decodes a definition bundle from YAML bytes. The name is used
// in error messages only.
func ParseBundle(data []byte, name string) (*Bundle, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{File: name, Message: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &LoadError{File: name, Message: "empty bundle"}
	}

	l := &loader{file: name}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, l.errf(root, "bundle must be a mapping")
	}

	bundle := &Bundle{}
	for k, v := range mappingPairs(root) {
		switch k.Value {
		case "entities":
			if err := l.decodeEntities(v, bundle); err != nil {
				return nil, err
			}
		case "helpers":
			if err := l.decodeHelpers(v, bundle); err != nil {
				return nil, err
			}
		default:
			return nil, l.errf(k, "unknown bundle key %q", k.Value)
		}
	}
	return bundle, nil
}

// mappingPairs iterates the key/value node pairs of a mapping in document
// order.
func mappingPairs(n *yaml.Node) func(func(k, v *yaml.Node) bool) {
	return func(yield func(k, v *yaml.Node) bool) {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if !yield(n.Content[i], n.Content[i+1]) {
				return
			}
		}
	}
}

func (l *loader) decodeEntities(n *yaml.Node, bundle *Bundle) error {
	if n.Kind != yaml.SequenceNode {
		return l.errf(n, "entities must be a sequence")
	}
	for _, item := range n.Content {
		entity, err := l.decodeEntity(item)
		if err != nil {
			return err
		}
		bundle.Entities = append(bundle.Entities, *entity)
	}
	return nil
}

func (l *loader) decodeEntity(n *yaml.Node) (*EntityDefinition, error) {
	if n.Kind != yaml.MappingNode {
		return nil, l.errf(n, "entity must be a mapping")
	}
	entity := &EntityDefinition{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "entity":
			entity.Name = v.Value
		case "schema":
			entity.Schema = v.Value
		case "tenant":
			b, err := l.decodeBool(v)
			if err != nil {
				return nil, err
			}
			entity.MultiTenant = b
		case "identifier_from":
			entity.IdentifierFrom = v.Value
		case "fields":
			fields, err := l.decodeFields(v)
			if err != nil {
				return nil, err
			}
			entity.Fields = fields
		case "actions":
			if v.Kind != yaml.SequenceNode {
				return nil, l.errf(v, "actions must be a sequence")
			}
			for _, item := range v.Content {
				action, err := l.decodeAction(item)
				if err != nil {
					return nil, err
				}
				entity.Actions = append(entity.Actions, *action)
			}
		default:
			return nil, l.errf(k, "unknown entity key %q", k.Value)
		}
	}
	if entity.Name == "" {
		return nil, l.errf(n, "entity name is required")
	}
	if entity.Schema == "" {
		return nil, l.errf(n, "entity %s: schema is required", entity.Name)
	}
	return entity, nil
}

func (l *loader) decodeFields(n *yaml.Node) ([]FieldDefinition, error) {
	if n.Kind != yaml.MappingNode {
		return nil, l.errf(n, "fields must be a mapping")
	}
	var fields []FieldDefinition
	for k, v := range mappingPairs(n) {
		field := FieldDefinition{Name: k.Value}
		switch v.Kind {
		case yaml.ScalarNode:
			field.Type = FieldType(v.Value)
		case yaml.MappingNode:
			for fk, fv := range mappingPairs(v) {
				switch fk.Value {
				case "type":
					field.Type = FieldType(fv.Value)
				case "entity":
					field.Ref = fv.Value
				case "required":
					b, err := l.decodeBool(fv)
					if err != nil {
						return nil, err
					}
					field.Required = b
				default:
					return nil, l.errf(fk, "unknown field key %q", fk.Value)
				}
			}
		default:
			return nil, l.errf(v, "field %s: expected type name or mapping", k.Value)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func (l *loader) decodeAction(n *yaml.Node) (*ActionDefinition, error) {
	if n.Kind != yaml.MappingNode {
		return nil, l.errf(n, "action must be a mapping")
	}
	action := &ActionDefinition{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "name":
			action.Name = v.Value
		case "params":
			params, err := l.decodeParams(v)
			if err != nil {
				return nil, err
			}
			action.Params = params
		case "steps":
			steps, err := l.decodeSteps(v)
			if err != nil {
				return nil, err
			}
			action.Steps = steps
		default:
			return nil, l.errf(k, "unknown action key %q", k.Value)
		}
	}
	if action.Name == "" {
		return nil, l.errf(n, "action name is required")
	}
	return action, nil
}

func (l *loader) decodeParams(n *yaml.Node) ([]ParamDefinition, error) {
	if n.Kind != yaml.MappingNode {
		return nil, l.errf(n, "params must be a mapping")
	}
	var params []ParamDefinition
	for k, v := range mappingPairs(n) {
		param := ParamDefinition{Name: k.Value}
		switch v.Kind {
		case yaml.ScalarNode:
			param.Type = FieldType(v.Value)
		case yaml.MappingNode:
			for pk, pv := range mappingPairs(v) {
				switch pk.Value {
				case "type":
					param.Type = FieldType(pv.Value)
				case "required":
					b, err := l.decodeBool(pv)
					if err != nil {
						return nil, err
					}
					param.Required = b
				default:
					return nil, l.errf(pk, "unknown param key %q", pk.Value)
				}
			}
		default:
			return nil, l.errf(v, "param %s: expected type name or mapping", k.Value)
		}
		params = append(params, param)
	}
	return params, nil
}

func (l *loader) decodeSteps(n *yaml.Node) ([]Step, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, l.errf(n, "steps must be a sequence")
	}
	var steps []Step
	for _, item := range n.Content {
		step, err := l.decodeStep(item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// decodeStep decodes one step. A step is a single-key mapping naming the
// step kind.
func (l *loader) decodeStep(n *yaml.Node) (Step, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, l.errf(n, "step must be a single-key mapping")
	}
	kind, body := n.Content[0], n.Content[1]
	switch kind.Value {
	case "validate":
		return l.decodeValidate(body)
	case "update":
		return l.decodeUpdate(body)
	case "insert":
		return l.decodeInsert(body)
	case "delete":
		return l.decodeDelete(body)
	case "if":
		return l.decodeConditional(body)
	case "foreach":
		return l.decodeForeach(body)
	case "call":
		return l.decodeCall(body)
	case "notify":
		return l.decodeNotify(body)
	default:
		return nil, l.errf(kind, "unknown step kind %q", kind.Value)
	}
}

func (l *loader) decodeValidate(n *yaml.Node) (Step, error) {
	step := &Validate{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "predicate":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.Predicate = expr
		case "error":
			step.ErrorCode = v.Value
		case "message":
			step.Message = v.Value
		default:
			return nil, l.errf(k, "unknown validate key %q", k.Value)
		}
	}
	if step.Predicate == nil {
		return nil, l.errf(n, "validate requires a predicate")
	}
	if step.ErrorCode == "" {
		return nil, l.errf(n, "validate requires an error code")
	}
	return step, nil
}

func (l *loader) decodeUpdate(n *yaml.Node) (Step, error) {
	step := &Update{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "entity":
			step.Target = v.Value
		case "id":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.TargetID = expr
		case "set":
			set, err := l.decodeAssignments(v)
			if err != nil {
				return nil, err
			}
			step.Set = set
		default:
			return nil, l.errf(k, "unknown update key %q", k.Value)
		}
	}
	if len(step.Set) == 0 {
		return nil, l.errf(n, "update requires at least one assignment")
	}
	return step, nil
}

func (l *loader) decodeInsert(n *yaml.Node) (Step, error) {
	step := &Insert{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "entity":
			step.Target = v.Value
		case "set":
			set, err := l.decodeAssignments(v)
			if err != nil {
				return nil, err
			}
			step.Set = set
		case "id":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.ID = expr
		case "identifier":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.Identifier = expr
		default:
			return nil, l.errf(k, "unknown insert key %q", k.Value)
		}
	}
	return step, nil
}

func (l *loader) decodeDelete(n *yaml.Node) (Step, error) {
	step := &Delete{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "entity":
			step.Target = v.Value
		case "id":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.TargetID = expr
		default:
			return nil, l.errf(k, "unknown delete key %q", k.Value)
		}
	}
	return step, nil
}

func (l *loader) decodeConditional(n *yaml.Node) (Step, error) {
	step := &Conditional{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "when":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.Predicate = expr
		case "then":
			steps, err := l.decodeSteps(v)
			if err != nil {
				return nil, err
			}
			step.Then = steps
		case "else":
			steps, err := l.decodeSteps(v)
			if err != nil {
				return nil, err
			}
			step.Else = steps
		default:
			return nil, l.errf(k, "unknown if key %q", k.Value)
		}
	}
	if step.Predicate == nil {
		return nil, l.errf(n, "if requires a when predicate")
	}
	if len(step.Then) == 0 {
		return nil, l.errf(n, "if requires a then branch")
	}
	return step, nil
}

func (l *loader) decodeForeach(n *yaml.Node) (Step, error) {
	step := &Foreach{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "in":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.Source = expr
		case "as":
			step.LoopVar = v.Value
		case "do":
			steps, err := l.decodeSteps(v)
			if err != nil {
				return nil, err
			}
			step.Body = steps
		default:
			return nil, l.errf(k, "unknown foreach key %q", k.Value)
		}
	}
	if step.Source == nil || step.LoopVar == "" || len(step.Body) == 0 {
		return nil, l.errf(n, "foreach requires in, as and do")
	}
	return step, nil
}

func (l *loader) decodeCall(n *yaml.Node) (Step, error) {
	step := &Call{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "procedure":
			step.Procedure = v.Value
		case "args":
			if v.Kind != yaml.SequenceNode {
				return nil, l.errf(v, "call args must be a sequence")
			}
			for _, item := range v.Content {
				expr, err := l.decodeExpr(item)
				if err != nil {
					return nil, err
				}
				step.Args = append(step.Args, expr)
			}
		case "into":
			step.ResultBinding = v.Value
		default:
			return nil, l.errf(k, "unknown call key %q", k.Value)
		}
	}
	if step.Procedure == "" {
		return nil, l.errf(n, "call requires a procedure")
	}
	return step, nil
}

func (l *loader) decodeNotify(n *yaml.Node) (Step, error) {
	step := &Notify{}
	for k, v := range mappingPairs(n) {
		switch k.Value {
		case "event":
			step.Event = v.Value
		case "payload":
			expr, err := l.decodeExpr(v)
			if err != nil {
				return nil, err
			}
			step.Payload = expr
		default:
			return nil, l.errf(k, "unknown notify key %q", k.Value)
		}
	}
	if step.Event == "" {
		return nil, l.errf(n, "notify requires an event")
	}
	return step, nil
}

func (l *loader) decodeAssignments(n *yaml.Node) ([]Assignment, error) {
	if n.Kind != yaml.MappingNode {
		return nil, l.errf(n, "set must be a mapping")
	}
	var set []Assignment
	for k, v := range mappingPairs(n) {
		expr, err := l.decodeExpr(v)
		if err != nil {
			return nil, err
		}
		set = append(set, Assignment{Field: k.Value, Value: expr})
	}
	return set, nil
}

// comparisonKeys maps expression mapping keys to comparison operators.
var comparisonKeys = map[string]CompareOp{
	"eq": OpEq, "ne": OpNe, "lt": OpLt, "gt": OpGt,
	"le": OpLe, "ge": OpGe, "in": OpIn,
}

// decodeExpr decodes one expression node. An expression is a single-key
// mapping naming the node kind, e.g. {eq: [{field: status}, {lit: lead}]}.
func (l *loader) decodeExpr(n *yaml.Node) (Expr, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, l.errf(n, "expression must be a single-key mapping")
	}
	kind, body := n.Content[0], n.Content[1]

	if op, ok := comparisonKeys[kind.Value]; ok {
		left, right, err := l.decodeExprPair(body)
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, Left: left, Right: right}, nil
	}

	switch kind.Value {
	case "field":
		switch body.Kind {
		case yaml.ScalarNode:
			return &FieldRef{Name: body.Value}, nil
		case yaml.MappingNode:
			ref := &FieldRef{}
			for k, v := range mappingPairs(body) {
				switch k.Value {
				case "name":
					ref.Name = v.Value
				case "of":
					ref.Of = v.Value
				default:
					return nil, l.errf(k, "unknown field key %q", k.Value)
				}
			}
			return ref, nil
		default:
			return nil, l.errf(body, "field must be a name or mapping")
		}
	case "param":
		return &ParamRef{Name: body.Value}, nil
	case "binding":
		return &BindingRef{Name: body.Value}, nil
	case "lit":
		return l.decodeLiteral(body)
	case "list":
		items, err := l.decodeExprList(body)
		if err != nil {
			return nil, err
		}
		return &List{Items: items}, nil
	case "and":
		items, err := l.decodeExprList(body)
		if err != nil {
			return nil, err
		}
		return &And{Operands: items}, nil
	case "or":
		items, err := l.decodeExprList(body)
		if err != nil {
			return nil, err
		}
		return &Or{Operands: items}, nil
	case "not":
		inner, err := l.decodeExpr(body)
		if err != nil {
			return nil, err
		}
		return &Not{Operand: inner}, nil
	case "fn":
		return l.decodeFuncCall(body)
	default:
		return nil, l.errf(kind, "unknown expression kind %q", kind.Value)
	}
}

func (l *loader) decodeExprPair(n *yaml.Node) (Expr, Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return nil, nil, l.errf(n, "comparison requires exactly two operands")
	}
	left, err := l.decodeExpr(n.Content[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := l.decodeExpr(n.Content[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (l *loader) decodeExprList(n *yaml.Node) ([]Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, l.errf(n, "expected a sequence of expressions")
	}
	var items []Expr
	for _, item := range n.Content {
		expr, err := l.decodeExpr(item)
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
	}
	return items, nil
}

func (l *loader) decodeFuncCall(n *yaml.Node) (Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		// Zero-argument shorthand: {fn: now}
		return &FuncCall{Name: n.Value}, nil
	case yaml.MappingNode:
		call := &FuncCall{}
		for k, v := range mappingPairs(n) {
			switch k.Value {
			case "name":
				call.Name = v.Value
			case "args":
				args, err := l.decodeExprList(v)
				if err != nil {
					return nil, err
				}
				call.Args = args
			default:
				return nil, l.errf(k, "unknown fn key %q", k.Value)
			}
		}
		if call.Name == "" {
			return nil, l.errf(n, "fn requires a name")
		}
		return call, nil
	default:
		return nil, l.errf(n, "fn must be a name or mapping")
	}
}

func (l *loader) decodeLiteral(n *yaml.Node) (Expr, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, l.errf(n, "lit must be a scalar")
	}
	switch n.Tag {
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, l.errf(n, "bad integer literal: %v", err)
		}
		return &Literal{Value: v}, nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, l.errf(n, "bad boolean literal: %v", err)
		}
		return &Literal{Value: v}, nil
	case "!!null":
		return &Literal{Value: nil}, nil
	case "!!float":
		return nil, l.errf(n, "float literals are not supported; use integer or text")
	default:
		return &Literal{Value: n.Value}, nil
	}
}

func (l *loader) decodeBool(n *yaml.Node) (bool, error) {
	switch strings.ToLower(n.Value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, l.errf(n, "expected true or false, got %q", n.Value)
	}
}

func (l *loader) decodeHelpers(n *yaml.Node, bundle *Bundle) error {
	if n.Kind != yaml.SequenceNode {
		return l.errf(n, "helpers must be a sequence")
	}
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			return l.errf(item, "helper must be a mapping")
		}
		helper := HelperDefinition{}
		for k, v := range mappingPairs(item) {
			switch k.Value {
			case "name":
				helper.Name = v.Value
			case "args":
				if v.Kind != yaml.SequenceNode {
					return l.errf(v, "helper args must be a sequence")
				}
				for _, arg := range v.Content {
					helper.Args = append(helper.Args, FieldType(arg.Value))
				}
			case "returns":
				helper.Returns = FieldType(v.Value)
			default:
				return l.errf(k, "unknown helper key %q", k.Value)
			}
		}
		if helper.Name == "" {
			return l.errf(item, "helper name is required")
		}
		bundle.Helpers = append(bundle.Helpers, helper)
	}
	return nil
}
