package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client-to-server message types.
const (
	TypeJoin     = "join"
	TypeEdit     = "edit"
	TypeCursor   = "cursor"
	TypeLanguage = "language"
	TypeLeave    = "leave"
)

// ErrValidation is the base error for malformed or incomplete client
// messages. Validation failures are reported to the sender and never reach
// session state.
var ErrValidation = errors.New("protocol: invalid message")

// ClientMessage is the decoded form of any client-to-server frame.
// Only the fields relevant to Type are populated.
type ClientMessage struct {
	Type string `json:"type"`

	// SessionID names the target session. Optional on join (the server
	// mints an identifier when absent), required implicitly by the
	// connection state for everything else.
	SessionID string `json:"sessionId,omitempty"`

	// Text is the full replacement document text for an edit.
	// A pointer so an empty document is distinguishable from an absent field.
	Text *string `json:"text,omitempty"`

	// Changeset is an opaque client-side diff relayed verbatim to other
	// participants alongside an edit. The server does not interpret it.
	Changeset json.RawMessage `json:"changeset,omitempty"`

	Cursor    *Cursor    `json:"cursor,omitempty"`
	Selection *Selection `json:"selection,omitempty"`

	Language string `json:"language,omitempty"`
}

// DecodeClientMessage parses and validates a client frame.
// The returned error wraps ErrValidation for any malformed or incomplete
// message so callers can report it without inspecting the text.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	switch msg.Type {
	case TypeJoin, TypeLeave:
		// No required payload.
	case TypeEdit:
		if msg.Text == nil {
			return nil, fmt.Errorf("%w: edit requires text", ErrValidation)
		}
	case TypeCursor:
		if msg.Cursor == nil {
			return nil, fmt.Errorf("%w: cursor message requires cursor", ErrValidation)
		}
	case TypeLanguage:
		if msg.Language == "" {
			return nil, fmt.Errorf("%w: language message requires language", ErrValidation)
		}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, msg.Type)
	}

	return &msg, nil
}
