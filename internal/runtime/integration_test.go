package runtime

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/compiler"
	"github.com/specforge/specforge/internal/schema"
)

const integrationBundle = `
entities:
  - entity: Contact
    schema: itest
    tenant: true
    identifier_from: name
    fields:
      name:
        type: text
        required: true
      status: text
      score: integer
    actions:
      - name: qualify_lead
        steps:
          - validate:
              predicate: {eq: [{field: status}, {lit: lead}]}
              error: not_a_lead
              message: Contact must be a lead
          - update:
              set:
                status: {lit: qualified}
          - notify:
              event: contact.qualified
      - name: register
        params:
          name:
            type: text
            required: true
        steps:
          - insert:
              set:
                name: {param: name}
                status: {lit: lead}
`

// Live round-trip against PostgreSQL: deploy the artifact, then drive an
// action through its success and failure paths. Requires SPECFORGE_PG_DSN.
func TestDeployAndInvoke_Postgres(t *testing.T) {
	dsn := os.Getenv("SPECFORGE_PG_DSN")
	if dsn == "" {
		t.Skip("SPECFORGE_PG_DSN not set; skipping live database test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	for _, stmt := range []string{
		"DROP SCHEMA IF EXISTS itest CASCADE",
		"CREATE SCHEMA itest",
		`CREATE TABLE itest.tb_contact (
			pk_contact INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			identifier TEXT NOT NULL UNIQUE,
			tenant_id UUID NOT NULL,
			name TEXT NOT NULL,
			status TEXT,
			score INTEGER,
			created_at TIMESTAMPTZ,
			created_by UUID,
			updated_at TIMESTAMPTZ,
			updated_by UUID,
			deleted_at TIMESTAMPTZ,
			deleted_by UUID
		)`,
	} {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	bundle, err := schema.ParseBundle([]byte(integrationBundle), "itest.yaml")
	require.NoError(t, err)
	require.Empty(t, bundle.Validate())

	artifact, err := compiler.New(bundle, compiler.Options{}).Compile()
	require.NoError(t, err)
	require.NoError(t, NewDeployer(pool, nil).Deploy(ctx, artifact))

	tenant := uuid.NewString()
	caller := uuid.NewString()
	invoker := NewInvoker(pool, nil)

	// Create a lead through the generated insert action.
	created, err := invoker.Invoke(ctx, "itest.contact_register", map[string]any{
		"p_name":      "Ada Lovelace",
		"p_tenant_id": tenant,
		"p_caller_id": caller,
	})
	require.NoError(t, err)
	require.NoError(t, created.Err())
	require.Len(t, created.Impacts, 1)
	assert.Equal(t, "create", created.Impacts[0].Operation)

	var contactID string
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT id::text FROM itest.tb_contact WHERE name = 'Ada Lovelace'").Scan(&contactID))

	// First qualification succeeds and records the intent.
	result, err := invoker.Invoke(ctx, "itest.contact_qualify_lead", map[string]any{
		"p_contact_id": contactID,
		"p_tenant_id":  tenant,
		"p_caller_id":  caller,
	})
	require.NoError(t, err)
	require.NoError(t, result.Err())

	intents, err := result.Notifications()
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "contact.qualified", intents[0].Event)

	var status string
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT status FROM itest.tb_contact WHERE id = $1", contactID).Scan(&status))
	assert.Equal(t, "qualified", status)

	// Second qualification fails the validate and leaves no trace.
	again, err := invoker.Invoke(ctx, "itest.contact_qualify_lead", map[string]any{
		"p_contact_id": contactID,
		"p_tenant_id":  tenant,
		"p_caller_id":  caller,
	})
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, "not_a_lead", again.ErrorCode)
	assert.Equal(t, "Contact must be a lead", again.ErrorMessage)

	// An unknown external id resolves to not_found.
	missing, err := invoker.Invoke(ctx, "itest.contact_qualify_lead", map[string]any{
		"p_contact_id": uuid.NewString(),
		"p_tenant_id":  tenant,
		"p_caller_id":  caller,
	})
	require.NoError(t, err)
	assert.Equal(t, "not_found", missing.ErrorCode)

	// A missing caller context is rejected before anything runs.
	unaudited, err := invoker.Invoke(ctx, "itest.contact_qualify_lead", map[string]any{
		"p_contact_id": contactID,
		"p_tenant_id":  tenant,
		"p_caller_id":  nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "validation_failed", unaudited.ErrorCode)
}
