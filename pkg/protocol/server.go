package protocol

import "encoding/json"

// Server-to-client message types.
const (
	TypeSnapshot          = "snapshot"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeDocUpdate         = "doc_update"
	TypeCursorUpdate      = "cursor_update"
	TypeLanguageUpdate    = "language_update"
	TypeError             = "error"
)

// Error codes carried by ErrorMessage.
const (
	ErrCodeNotJoined     = "not_joined"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeBadMessage    = "bad_message"
)

// SnapshotMessage delivers the full current session state to a client that
// just joined. Participants lists everyone already present, excluding the
// recipient itself.
type SnapshotMessage struct {
	Type         string        `json:"type"`
	SessionID    string        `json:"sessionId"`
	Doc          string        `json:"document"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants"`
	Self         Participant   `json:"self"`
}

// NewSnapshot builds a SnapshotMessage.
func NewSnapshot(sessionID, doc, language string, participants []Participant, self Participant) *SnapshotMessage {
	if participants == nil {
		participants = []Participant{}
	}
	return &SnapshotMessage{
		Type:         TypeSnapshot,
		SessionID:    sessionID,
		Doc:          doc,
		Language:     language,
		Participants: participants,
		Self:         self,
	}
}

// ParticipantJoinedMessage announces a new participant to everyone already
// in the session.
type ParticipantJoinedMessage struct {
	Type        string      `json:"type"`
	Participant Participant `json:"participant"`
}

// NewParticipantJoined builds a ParticipantJoinedMessage.
func NewParticipantJoined(p Participant) *ParticipantJoinedMessage {
	return &ParticipantJoinedMessage{Type: TypeParticipantJoined, Participant: p}
}

// ParticipantLeftMessage announces a departure to the remaining participants.
type ParticipantLeftMessage struct {
	Type   string `json:"type"`
	ConnID string `json:"connId"`
}

// NewParticipantLeft builds a ParticipantLeftMessage.
func NewParticipantLeft(connID string) *ParticipantLeftMessage {
	return &ParticipantLeftMessage{Type: TypeParticipantLeft, ConnID: connID}
}

// DocUpdateMessage relays an edit to every participant except its originator.
type DocUpdateMessage struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	Changeset    json.RawMessage `json:"changeset,omitempty"`
	OriginatorID string          `json:"originatorId"`
}

// NewDocUpdate builds a DocUpdateMessage.
func NewDocUpdate(text string, changeset json.RawMessage, originatorID string) *DocUpdateMessage {
	return &DocUpdateMessage{Type: TypeDocUpdate, Text: text, Changeset: changeset, OriginatorID: originatorID}
}

// CursorUpdateMessage relays a cursor or selection move to the other
// participants.
type CursorUpdateMessage struct {
	Type      string     `json:"type"`
	ConnID    string     `json:"connId"`
	Cursor    Cursor     `json:"cursor"`
	Selection *Selection `json:"selection,omitempty"`
}

// NewCursorUpdate builds a CursorUpdateMessage.
func NewCursorUpdate(connID string, cursor Cursor, selection *Selection) *CursorUpdateMessage {
	return &CursorUpdateMessage{Type: TypeCursorUpdate, ConnID: connID, Cursor: cursor, Selection: selection}
}

// LanguageUpdateMessage announces a session-wide language change.
// Unlike edits it is delivered to all participants, originator included,
// since language is display state every client must reflect.
type LanguageUpdateMessage struct {
	Type         string `json:"type"`
	Language     string `json:"language"`
	OriginatorID string `json:"originatorId"`
}

// NewLanguageUpdate builds a LanguageUpdateMessage.
func NewLanguageUpdate(language, originatorID string) *LanguageUpdateMessage {
	return &LanguageUpdateMessage{Type: TypeLanguageUpdate, Language: language, OriginatorID: originatorID}
}

// ErrorMessage reports a per-connection fault to the client without
// resetting the connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an ErrorMessage.
func NewError(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Code: code, Message: message}
}

// Encode marshals a server message for the wire.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// MessageType peeks at the type field of an encoded message.
// Used by clients (and tests) to dispatch before full decoding.
func MessageType(data []byte) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", err
	}
	return envelope.Type, nil
}
