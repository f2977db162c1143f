package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallArgs(t *testing.T) {
	args, err := parseCallArgs([]string{
		"p_contact_id=0b44c5c7-8a4e-4be3-a264-6bd4545cf351",
		"p_notes=null",
		"p_name=a=b", // values may contain '='
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"p_contact_id": "0b44c5c7-8a4e-4be3-a264-6bd4545cf351",
		"p_notes":      nil,
		"p_name":       "a=b",
	}, args)
}

func TestParseCallArgs_Malformed(t *testing.T) {
	_, err := parseCallArgs([]string{"no-equals-sign"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `malformed --arg "no-equals-sign"`)

	_, err = parseCallArgs([]string{"=value"})
	require.Error(t, err)
}
