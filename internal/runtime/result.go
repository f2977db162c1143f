// Package runtime executes compiled actions against a live PostgreSQL
// database: deploying artifacts and invoking the generated functions,
// decoding their uniform result envelope.
package runtime

import (
	"encoding/json"
	"fmt"
)

// ImpactRecord describes one entity mutated by an action, as accumulated by
// the generated code (including mutations performed by called actions).
type ImpactRecord struct {
	Entity    string   `json:"entity"`
	Operation string   `json:"operation"` // create | update | delete
	IDs       []string `json:"ids"`
}

// NotificationIntent is one recorded side-effect intent. Intents are only
// surfaced by successful actions; dispatching them is the caller's job.
type NotificationIntent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MutationResult is the uniform envelope every compiled action returns.
// error_code is the stable contract; error_message is human-readable and
// free to change.
type MutationResult struct {
	Success       bool                       `json:"success"`
	ErrorCode     string                     `json:"error_code,omitempty"`
	ErrorMessage  string                     `json:"error_message,omitempty"`
	ObjectData    json.RawMessage            `json:"object_data,omitempty"`
	Impacts       []ImpactRecord             `json:"impacts"`
	ExtraMetadata map[string]json.RawMessage `json:"extra_metadata,omitempty"`
}

// MutationError is a failed envelope surfaced as a Go error.
type MutationError struct {
	Code    string
	Message string
}

func (e *MutationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Err returns nil for a successful result and a *MutationError otherwise.
func (r *MutationResult) Err() error {
	if r.Success {
		return nil
	}
	return &MutationError{Code: r.ErrorCode, Message: r.ErrorMessage}
}

// Notifications decodes the recorded notification intents from
// extra_metadata. A result without intents yields an empty slice.
func (r *MutationResult) Notifications() ([]NotificationIntent, error) {
	raw, ok := r.ExtraMetadata["notifications"]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var intents []NotificationIntent
	if err := json.Unmarshal(raw, &intents); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	return intents, nil
}

// DecodeResult parses the JSONB form of a mutation_result as returned by
// SELECT to_jsonb(fn(...)).
func DecodeResult(data []byte) (*MutationResult, error) {
	var result MutationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding mutation result: %w", err)
	}
	return &result, nil
}
