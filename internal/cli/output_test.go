package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerData struct{ n int }

func (s stringerData) String() string { return fmt.Sprintf("%d thing(s)", s.n) }

func TestOutputFormatter_SuccessText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success(stringerData{n: 3}))
	assert.Equal(t, "3 thing(s)\n", buf.String())
}

func TestOutputFormatter_SuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]any{"count": 3}))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_ErrorTextDetails(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeInvalidBundle, "2 problem(s)",
		[]string{"first problem", "second problem"}))

	out := buf.String()
	assert.Contains(t, out, "Error [invalid_bundle]: 2 problem(s)")
	assert.Contains(t, out, "  - first problem")
	assert.Contains(t, out, "  - second problem")
}

func TestOutputFormatter_VerboseLogSeparateWriter(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag, Verbose: true}

	f.VerboseLog("loaded %d entities", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 2 entities\n", diag.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitCommandError,
		GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "boom"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
