package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInvocation(t *testing.T) {
	sql, values, err := buildInvocation("crm.contact_qualify_lead", map[string]any{
		"p_threshold":  75,
		"p_contact_id": "0b44c5c7-8a4e-4be3-a264-6bd4545cf351",
		"p_tenant_id":  "4dd2a543-6cb2-4a17-8f0c-b09a9c2a2b94",
		"p_caller_id":  "9c7f3f1c-3f0f-4f0e-a2e5-5e9a6cc1f6a0",
	})
	require.NoError(t, err)

	// Arguments render in sorted name order, so the statement text is
	// stable regardless of map iteration.
	assert.Equal(t,
		"SELECT to_jsonb(crm.contact_qualify_lead(p_caller_id => $1, p_contact_id => $2, p_tenant_id => $3, p_threshold => $4))",
		sql)
	assert.Equal(t, []any{
		"9c7f3f1c-3f0f-4f0e-a2e5-5e9a6cc1f6a0",
		"0b44c5c7-8a4e-4be3-a264-6bd4545cf351",
		"4dd2a543-6cb2-4a17-8f0c-b09a9c2a2b94",
		75,
	}, values)
}

func TestBuildInvocation_NoArgs(t *testing.T) {
	sql, values, err := buildInvocation("app.note_touch", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT to_jsonb(app.note_touch())", sql)
	assert.Empty(t, values)
}

func TestBuildInvocation_RejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := buildInvocation("crm.contact_pk; DROP TABLE crm.tb_contact", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid function name")

	_, _, err = buildInvocation("crm.contact_archive", map[string]any{
		"p_id, p_other": 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument name")
}
