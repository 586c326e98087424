package protocol

// ExecuteRequest is the one-shot HTTP execution request body.
// SessionID is an optional correlation identifier echoed back to the caller;
// execution itself is independent of session state.
type ExecuteRequest struct {
	Source    string `json:"source"`
	Language  string `json:"language"`
	SessionID string `json:"sessionId,omitempty"`
}

// ExecuteResponse is the one-shot HTTP execution result.
type ExecuteResponse struct {
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsedMs"`
	Simulated bool   `json:"simulated"`
	SessionID string `json:"sessionId,omitempty"`
}

// SessionInfo is the read-only session introspection response.
type SessionInfo struct {
	ID           string        `json:"id"`
	Doc          string        `json:"document"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants"`
}

// CreateSessionResponse carries a freshly minted session identifier.
type CreateSessionResponse struct {
	ID string `json:"id"`
}

// HTTPError is the JSON error body for 4xx/5xx API responses.
type HTTPError struct {
	Error string `json:"error"`
}
