package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Flows a consent round-trip can serve.
const (
	// FlowConnect is the default: connect or reconnect an integration.
	FlowConnect = ""
	// FlowMessenger extends an existing integration with messenger scopes.
	FlowMessenger = "messenger"
)

// State is the opaque payload threaded through the marketplace's consent
// screen. It routes the callback back to the integration (or property) that
// started the flow; the marketplace never interprets it.
type State struct {
	IntegrationID int64  `json:"integration_id,omitempty"`
	PropertyID    int64  `json:"property_id,omitempty"`
	UserID        int64  `json:"user_id"`
	Flow          string `json:"flow,omitempty"`
	Nonce         string `json:"nonce"`
}

// NewState builds a state payload with a fresh nonce.
func NewState(userID, integrationID, propertyID int64, flow string) State {
	return State{
		IntegrationID: integrationID,
		PropertyID:    propertyID,
		UserID:        userID,
		Flow:          flow,
		Nonce:         uuid.New().String(),
	}
}

// Encode serializes the state as URL-safe base64-wrapped JSON.
func (s State) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode oauth state: %w", err)
	}

	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodeState parses a state string. Older frontends sent plain JSON, newer
// ones base64-wrap it; both decodings are attempted.
func DecodeState(raw string) (State, error) {
	var s State

	if decoded, err := base64.URLEncoding.DecodeString(raw); err == nil {
		if json.Unmarshal(decoded, &s) == nil && s.UserID != 0 {
			return s, nil
		}
	}

	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.UserID == 0 {
		return State{}, fmt.Errorf("undecodable oauth state")
	}

	return s, nil
}
