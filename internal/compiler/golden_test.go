package compiler

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/schema"
)

// Golden coverage of a complete generated function. Regenerate with:
//
//	go test ./internal/compiler -run TestCompileAction_Golden -update
func TestCompileAction_Golden(t *testing.T) {
	bundle := &schema.Bundle{
		Entities: []schema.EntityDefinition{
			{
				Name:   "Note",
				Schema: "app",
				Fields: []schema.FieldDefinition{
					{Name: "title", Type: schema.TypeText, Required: true},
				},
				Actions: []schema.ActionDefinition{
					{
						Name: "retitle",
						Params: []schema.ParamDefinition{
							{Name: "title", Type: schema.TypeText, Required: true},
						},
						Steps: []schema.Step{
							&schema.Update{Set: []schema.Assignment{
								{Field: "title", Value: &schema.ParamRef{Name: "title"}},
							}},
						},
					},
				},
			},
		},
	}

	compiled, err := New(bundle, Options{}).CompileAction("Note", "retitle")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "note_retitle", []byte(compiled.SQL))
}
