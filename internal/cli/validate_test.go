package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBundleYAML = `
entities:
  - entity: Contact
    schema: crm
    tenant: true
    fields:
      name:
        type: text
        required: true
      status: text
    actions:
      - name: archive
        steps:
          - delete: {}
`

const invalidBundleYAML = `
entities:
  - entity: Contact
    schema: crm
    fields:
      owner:
        type: ref
        entity: Nobody
    actions:
      - name: empty
`

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestValidateCommand_OK(t *testing.T) {
	path := writeBundle(t, validBundleYAML)

	out, err := runCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 entity(ies), 1 action(s), ok")
}

func TestValidateCommand_InvalidBundle(t *testing.T) {
	path := writeBundle(t, invalidBundleYAML)

	out, err := runCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [invalid_bundle]")
	assert.Contains(t, out, `targets unknown entity "Nobody"`)
	assert.Contains(t, out, "at least one step is required")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := runCommand(t, "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_JSONError(t *testing.T) {
	path := writeBundle(t, invalidBundleYAML)

	out, err := runCommand(t, "--format", "json", "validate", path)
	require.Error(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidBundle, resp.Error.Code)
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	path := writeBundle(t, validBundleYAML)

	_, err := runCommand(t, "--format", "xml", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
