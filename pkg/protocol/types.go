package protocol

// Cursor is a zero-based position in the shared document.
type Cursor struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Selection is an inclusive-exclusive range between two cursors.
type Selection struct {
	Start Cursor `json:"start"`
	End   Cursor `json:"end"`
}

// Participant describes one connected client's presence within a session.
type Participant struct {
	ConnID    string     `json:"connId"`
	Name      string     `json:"name"`
	Cursor    Cursor     `json:"cursor"`
	Selection *Selection `json:"selection,omitempty"`
}
