package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBundle() *Bundle {
	return &Bundle{
		Entities: []EntityDefinition{
			{
				Name:   "Contact",
				Schema: "crm",
				Fields: []FieldDefinition{
					{Name: "name", Type: TypeText, Required: true},
					{Name: "status", Type: TypeText},
					{Name: "company", Type: TypeRef, Ref: "Company"},
				},
				Actions: []ActionDefinition{
					{
						Name:   "archive",
						Params: []ParamDefinition{{Name: "reason", Type: TypeText}},
						Steps:  []Step{&Delete{}},
					},
				},
			},
			{
				Name:   "Company",
				Schema: "crm",
				Fields: []FieldDefinition{{Name: "name", Type: TypeText}},
			},
		},
	}
}

func TestValidate_CleanBundle(t *testing.T) {
	assert.Empty(t, validBundle().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	b := validBundle()
	// Introduce three independent problems; all must be reported.
	b.Entities[0].Fields = append(b.Entities[0].Fields,
		FieldDefinition{Name: "name", Type: TypeText},
		FieldDefinition{Name: "owner", Type: TypeRef, Ref: "Nonexistent"},
	)
	b.Entities[0].IdentifierFrom = "missing"

	errs := b.Validate()
	require.Len(t, errs, 3)

	var messages []string
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	assert.Contains(t, messages[0], `duplicate field name "name"`)
	assert.Contains(t, messages[1], `targets unknown entity "Nonexistent"`)
	assert.Contains(t, messages[2], `unknown field "missing"`)
}

func TestValidate_DuplicateEntity(t *testing.T) {
	b := validBundle()
	b.Entities = append(b.Entities, EntityDefinition{Name: "Contact", Schema: "crm"})

	errs := b.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), `duplicate entity name "Contact"`)
}

func TestValidate_ActionRules(t *testing.T) {
	b := validBundle()
	b.Entities[0].Actions = append(b.Entities[0].Actions,
		ActionDefinition{Name: "archive", Steps: []Step{&Delete{}}},
		ActionDefinition{Name: "empty"},
		ActionDefinition{
			Name:   "badparam",
			Params: []ParamDefinition{{Name: "target", Type: TypeRef}},
			Steps:  []Step{&Delete{}},
		},
	)

	errs := b.Validate()
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Message, `duplicate action name "archive"`)
	assert.Equal(t, "at least one step is required", errs[1].Message)
	assert.Contains(t, errs[2].Message, `invalid type "ref" for param "target"`)
}

func TestValidate_StepTargets(t *testing.T) {
	b := validBundle()
	b.Entities[0].Actions[0].Steps = []Step{
		&Conditional{
			Predicate: &Literal{Value: true},
			Then: []Step{
				&Update{Target: "Ghost", Set: []Assignment{{Field: "x", Value: &Literal{Value: 1}}}},
			},
			Else: []Step{
				&Foreach{
					Source:  &FieldRef{Name: "status"},
					LoopVar: "item",
					Body:    []Step{&Insert{Target: "Phantom"}},
				},
			},
		},
	}

	errs := b.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), `unknown target entity "Ghost"`)
	assert.Contains(t, errs[0].Path, ".then[0]")
	assert.Contains(t, errs[1].Error(), `unknown target entity "Phantom"`)
	assert.Contains(t, errs[1].Path, ".do[0]")
}

func TestValidate_Helpers(t *testing.T) {
	b := validBundle()
	b.Helpers = []HelperDefinition{
		{Name: "crm.score", Returns: TypeInteger},
		{Name: "crm.score"},
		{Name: "crm.rank", Returns: "decimal"},
	}

	errs := b.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, `duplicate helper name "crm.score"`)
	assert.Contains(t, errs[1].Message, `invalid type "decimal"`)
}
