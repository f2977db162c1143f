package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult_Success(t *testing.T) {
	raw := `{
		"success": true,
		"error_code": null,
		"error_message": null,
		"object_data": {"id": "0b44c5c7-8a4e-4be3-a264-6bd4545cf351", "status": "qualified"},
		"impacts": [{"entity": "Contact", "operation": "update", "ids": ["0b44c5c7-8a4e-4be3-a264-6bd4545cf351"]}],
		"extra_metadata": {"notifications": [{"event": "contact.qualified", "payload": "Ada"}]}
	}`

	result, err := DecodeResult([]byte(raw))
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NoError(t, result.Err())

	require.Len(t, result.Impacts, 1)
	assert.Equal(t, "Contact", result.Impacts[0].Entity)
	assert.Equal(t, "update", result.Impacts[0].Operation)
	assert.Equal(t, []string{"0b44c5c7-8a4e-4be3-a264-6bd4545cf351"}, result.Impacts[0].IDs)

	var object map[string]any
	require.NoError(t, json.Unmarshal(result.ObjectData, &object))
	assert.Equal(t, "qualified", object["status"])

	intents, err := result.Notifications()
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "contact.qualified", intents[0].Event)
	assert.Equal(t, `"Ada"`, string(intents[0].Payload))
}

func TestDecodeResult_Failure(t *testing.T) {
	raw := `{
		"success": false,
		"error_code": "not_a_lead",
		"error_message": "Contact must be a lead",
		"object_data": null,
		"impacts": [],
		"extra_metadata": {}
	}`

	result, err := DecodeResult([]byte(raw))
	require.NoError(t, err)

	err = result.Err()
	require.Error(t, err)
	var mutErr *MutationError
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, "not_a_lead", mutErr.Code)
	assert.Equal(t, "not_a_lead: Contact must be a lead", mutErr.Error())

	intents, notifyErr := result.Notifications()
	require.NoError(t, notifyErr)
	assert.Empty(t, intents)
}

func TestDecodeResult_Malformed(t *testing.T) {
	_, err := DecodeResult([]byte(`{"success": "yes"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding mutation result")
}
