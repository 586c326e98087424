package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codesync-dev/codesync/pkg/protocol"
)

// ErrClosed is returned by Join when the session was reclaimed between the
// store lookup and the join. Callers should re-resolve the identifier and
// retry; the store never hands out a closed session.
var ErrClosed = errors.New("session: closed")

// Sink receives encoded frames destined for one participant's connection.
//
// Enqueue is called while the owning session's mutex is held and must never
// block: implementations queue into a bounded buffer and report a drop with
// false. A slow or unresponsive participant must not stall delivery to the
// rest of the session.
type Sink interface {
	Enqueue(frame []byte) bool
}

type member struct {
	p    protocol.Participant
	seq  int
	sink Sink
}

// Session is one named collaborative editing context: a shared document, a
// language tag, and the registry of current participants. All state is
// guarded by a single mutex per session so sessions never contend with each
// other.
type Session struct {
	ID string

	mu       sync.Mutex
	doc      string
	language string
	members  map[string]*member
	joinSeq  int
	closed   bool
}

func newSession(id, language string) *Session {
	return &Session{
		ID:       id,
		language: language,
		members:  make(map[string]*member),
	}
}

// Snapshot is a point-in-time copy of a session's shared state.
type Snapshot struct {
	ID           string
	Doc          string
	Language     string
	Participants []protocol.Participant
}

// Join registers a connection as a new participant. The display name is
// assigned from the session's join counter ("User1", "User2", ...); names of
// departed participants are not recycled. The returned snapshot reflects the
// session as the joiner should first see it: document, language, and the
// participants present before the join.
//
// welcome, when non-nil, builds the joiner's first frame from the assigned
// participant and that snapshot. It runs and is enqueued under the session
// lock: registration makes the member visible to fan-out, so only delivering
// the welcome frame in the same critical section guarantees no concurrent
// broadcast lands in the joiner's queue ahead of it.
func (s *Session) Join(connID string, sink Sink, welcome func(p protocol.Participant, snap Snapshot) []byte) (protocol.Participant, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return protocol.Participant{}, Snapshot{}, ErrClosed
	}

	snap := Snapshot{
		ID:           s.ID,
		Doc:          s.doc,
		Language:     s.language,
		Participants: s.participantsLocked(connID),
	}

	s.joinSeq++
	p := protocol.Participant{
		ConnID: connID,
		Name:   fmt.Sprintf("User%d", s.joinSeq),
	}
	s.members[connID] = &member{p: p, seq: s.joinSeq, sink: sink}

	if welcome != nil {
		if frame := welcome(p, snap); frame != nil {
			sink.Enqueue(frame)
		}
	}

	return p, snap, nil
}

// Leave removes a participant and delivers frame to everyone remaining; a
// nil frame skips the broadcast. It reports whether the connection was
// actually registered and whether the session is now empty; an empty session
// is the caller's cue for store reclamation.
func (s *Session) Leave(connID string, frame []byte) (removed, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[connID]; !ok {
		return false, len(s.members) == 0
	}
	delete(s.members, connID)

	if frame != nil {
		for _, m := range s.members {
			m.sink.Enqueue(frame)
		}
	}
	return true, len(s.members) == 0
}

// SetDocBroadcast applies an edit and fans the frame out to every
// participant except the originator, atomically with respect to the session
// state. Returns false without side effects when the originator is no longer
// registered (a disconnect raced the edit).
func (s *Session) SetDocBroadcast(origin, text string, frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[origin]; !ok {
		return false
	}
	s.doc = text
	s.broadcastLocked(origin, frame)
	return true
}

// SetLanguageBroadcast applies a language change and fans the frame out to
// all participants, the originator included.
func (s *Session) SetLanguageBroadcast(origin, language string, frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[origin]; !ok {
		return false
	}
	s.language = language
	for _, m := range s.members {
		m.sink.Enqueue(frame)
	}
	return true
}

// CursorBroadcast records a cursor or selection move and relays it to the
// other participants. The document is untouched. Stale originators are a
// silent no-op.
func (s *Session) CursorBroadcast(origin string, cursor protocol.Cursor, selection *protocol.Selection, frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[origin]
	if !ok {
		return false
	}
	m.p.Cursor = cursor
	m.p.Selection = selection
	s.broadcastLocked(origin, frame)
	return true
}

// BroadcastOthers delivers frame to every participant except origin.
func (s *Session) BroadcastOthers(origin string, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(origin, frame)
}

func (s *Session) broadcastLocked(origin string, frame []byte) {
	for id, m := range s.members {
		if id == origin {
			continue
		}
		m.sink.Enqueue(frame)
	}
}

// Snapshot returns a copy of the full session state, participants included.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		Doc:          s.doc,
		Language:     s.language,
		Participants: s.participantsLocked(""),
	}
}

// Participants returns the current participants in join order.
func (s *Session) Participants() []protocol.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantsLocked("")
}

func (s *Session) participantsLocked(exclude string) []protocol.Participant {
	type entry struct {
		p   protocol.Participant
		seq int
	}
	entries := make([]entry, 0, len(s.members))
	for id, m := range s.members {
		if id == exclude {
			continue
		}
		entries = append(entries, entry{p: m.p, seq: m.seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]protocol.Participant, len(entries))
	for i, e := range entries {
		out[i] = e.p
	}
	return out
}

// Doc returns the current document text.
func (s *Session) Doc() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Language returns the current language tag.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Count returns the number of registered participants.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
