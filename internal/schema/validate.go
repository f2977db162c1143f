package schema

import "fmt"

// ValidationError represents a structural validation error with field path
// and message.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the bundle against structural rules. Returns all errors
// (not fail-fast) for better developer experience. Scope and binding rules
// are enforced later by the compiler; this pass only catches shape problems
// that make a bundle unusable.
func (b *Bundle) Validate() []ValidationError {
	var errs []ValidationError

	seenEntities := make(map[string]bool)
	for i := range b.Entities {
		entity := &b.Entities[i]
		path := fmt.Sprintf("entities[%d]", i)

		if seenEntities[entity.Name] {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("duplicate entity name %q", entity.Name),
			})
		}
		seenEntities[entity.Name] = true

		errs = append(errs, b.validateEntity(entity, path)...)
	}

	seenHelpers := make(map[string]bool)
	for i, helper := range b.Helpers {
		path := fmt.Sprintf("helpers[%d]", i)
		if seenHelpers[helper.Name] {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("duplicate helper name %q", helper.Name),
			})
		}
		seenHelpers[helper.Name] = true
		if helper.Returns != "" && !ValidFieldTypes[helper.Returns] {
			errs = append(errs, ValidationError{
				Path:    path + ".returns",
				Message: fmt.Sprintf("invalid type %q", helper.Returns),
			})
		}
	}

	return errs
}

func (b *Bundle) validateEntity(entity *EntityDefinition, path string) []ValidationError {
	var errs []ValidationError

	seenFields := make(map[string]bool)
	for i, field := range entity.Fields {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		if seenFields[field.Name] {
			errs = append(errs, ValidationError{
				Path:    fpath,
				Message: fmt.Sprintf("duplicate field name %q", field.Name),
			})
		}
		seenFields[field.Name] = true

		if !ValidFieldTypes[field.Type] {
			errs = append(errs, ValidationError{
				Path: fpath,
				Message: fmt.Sprintf("invalid type %q for field %q",
					field.Type, field.Name),
			})
		}
		if field.Type == TypeRef {
			if field.Ref == "" {
				errs = append(errs, ValidationError{
					Path:    fpath,
					Message: fmt.Sprintf("ref field %q must name a target entity", field.Name),
				})
			} else if b.Entity(field.Ref) == nil {
				errs = append(errs, ValidationError{
					Path: fpath,
					Message: fmt.Sprintf("ref field %q targets unknown entity %q",
						field.Name, field.Ref),
				})
			}
		}
	}

	if entity.IdentifierFrom != "" && entity.Field(entity.IdentifierFrom) == nil {
		errs = append(errs, ValidationError{
			Path:    path + ".identifier_from",
			Message: fmt.Sprintf("unknown field %q", entity.IdentifierFrom),
		})
	}

	seenActions := make(map[string]bool)
	for i := range entity.Actions {
		action := &entity.Actions[i]
		apath := fmt.Sprintf("%s.actions[%d]", path, i)

		if seenActions[action.Name] {
			errs = append(errs, ValidationError{
				Path:    apath,
				Message: fmt.Sprintf("duplicate action name %q", action.Name),
			})
		}
		seenActions[action.Name] = true

		seenParams := make(map[string]bool)
		for j, param := range action.Params {
			ppath := fmt.Sprintf("%s.params[%d]", apath, j)
			if seenParams[param.Name] {
				errs = append(errs, ValidationError{
					Path:    ppath,
					Message: fmt.Sprintf("duplicate param name %q", param.Name),
				})
			}
			seenParams[param.Name] = true
			if !ValidFieldTypes[param.Type] || param.Type == TypeRef {
				errs = append(errs, ValidationError{
					Path: ppath,
					Message: fmt.Sprintf("invalid type %q for param %q",
						param.Type, param.Name),
				})
			}
		}

		if len(action.Steps) == 0 {
			errs = append(errs, ValidationError{
				Path:    apath,
				Message: "at least one step is required",
			})
		}
		errs = append(errs, b.validateSteps(entity, action.Steps, apath+".steps")...)
	}

	return errs
}

// validateSteps checks step targets against known entities, recursing into
// branches.
func (b *Bundle) validateSteps(entity *EntityDefinition, steps []Step, path string) []ValidationError {
	var errs []ValidationError
	checkTarget := func(target, spath string) {
		if target != "" && b.Entity(target) == nil {
			errs = append(errs, ValidationError{
				Path:    spath,
				Message: fmt.Sprintf("unknown target entity %q", target),
			})
		}
	}
	for i, step := range steps {
		spath := fmt.Sprintf("%s[%d]", path, i)
		switch st := step.(type) {
		case *Validate:
			if st.ErrorCode == "" {
				errs = append(errs, ValidationError{
					Path:    spath,
					Message: "validate requires an error code",
				})
			}
		case *Update:
			checkTarget(st.Target, spath)
		case *Insert:
			checkTarget(st.Target, spath)
		case *Delete:
			checkTarget(st.Target, spath)
		case *Conditional:
			errs = append(errs, b.validateSteps(entity, st.Then, spath+".then")...)
			errs = append(errs, b.validateSteps(entity, st.Else, spath+".else")...)
		case *Foreach:
			errs = append(errs, b.validateSteps(entity, st.Body, spath+".do")...)
		case *Call:
		case *Notify:
		}
	}
	return errs
}
