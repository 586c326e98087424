package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/codesync-dev/codesync/pkg/protocol"
)

// recordSink collects every frame delivered to it.
type recordSink struct {
	mu     sync.Mutex
	frames []string
}

func (r *recordSink) Enqueue(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
	return true
}

func (r *recordSink) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	copy(out, r.frames)
	return out
}

func TestJoinAssignsSequentialNames(t *testing.T) {
	sess := newSession("abc", "python")

	a, _, err := sess.Join("conn-a", &recordSink{}, nil)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	b, _, err := sess.Join("conn-b", &recordSink{}, nil)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if a.Name != "User1" {
		t.Errorf("first participant name = %q, want %q", a.Name, "User1")
	}
	if b.Name != "User2" {
		t.Errorf("second participant name = %q, want %q", b.Name, "User2")
	}

	// Names of departed participants are not recycled.
	sess.Leave("conn-a", nil)
	c, _, err := sess.Join("conn-c", &recordSink{}, nil)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if c.Name != "User3" {
		t.Errorf("third participant name = %q, want %q", c.Name, "User3")
	}
}

func TestJoinSnapshotExcludesSelf(t *testing.T) {
	sess := newSession("abc", "python")
	sess.doc = "print(1)"

	_, snapA, _ := sess.Join("conn-a", &recordSink{}, nil)
	if len(snapA.Participants) != 0 {
		t.Errorf("first joiner sees %d participants, want 0", len(snapA.Participants))
	}
	if snapA.Doc != "print(1)" {
		t.Errorf("snapshot doc = %q, want %q", snapA.Doc, "print(1)")
	}
	if snapA.Language != "python" {
		t.Errorf("snapshot language = %q, want %q", snapA.Language, "python")
	}

	_, snapB, _ := sess.Join("conn-b", &recordSink{}, nil)
	if len(snapB.Participants) != 1 || snapB.Participants[0].ConnID != "conn-a" {
		t.Errorf("second joiner snapshot participants = %+v, want just conn-a", snapB.Participants)
	}
}

func TestSetDocBroadcastExcludesOriginator(t *testing.T) {
	sess := newSession("abc", "python")
	sinkA := &recordSink{}
	sinkB := &recordSink{}
	sess.Join("conn-a", sinkA, nil)
	sess.Join("conn-b", sinkB, nil)

	if !sess.SetDocBroadcast("conn-a", "print(1)", []byte("edit-frame")) {
		t.Fatal("SetDocBroadcast returned false for a registered originator")
	}

	if sess.Doc() != "print(1)" {
		t.Errorf("Doc() = %q, want %q", sess.Doc(), "print(1)")
	}
	if got := sinkB.received(); len(got) != 1 || got[0] != "edit-frame" {
		t.Errorf("other participant received %v, want [edit-frame]", got)
	}
	if got := sinkA.received(); len(got) != 0 {
		t.Errorf("originator received its own edit: %v", got)
	}
}

func TestSetDocBroadcastStaleOriginator(t *testing.T) {
	sess := newSession("abc", "python")
	sinkB := &recordSink{}
	sess.Join("conn-b", sinkB, nil)

	if sess.SetDocBroadcast("gone", "x", []byte("frame")) {
		t.Error("SetDocBroadcast should return false for an unregistered originator")
	}
	if sess.Doc() != "" {
		t.Errorf("stale edit mutated document: %q", sess.Doc())
	}
	if len(sinkB.received()) != 0 {
		t.Error("stale edit was broadcast")
	}
}

func TestSetLanguageBroadcastIncludesOriginator(t *testing.T) {
	sess := newSession("abc", "python")
	sinkA := &recordSink{}
	sinkB := &recordSink{}
	sess.Join("conn-a", sinkA, nil)
	sess.Join("conn-b", sinkB, nil)

	if !sess.SetLanguageBroadcast("conn-a", "go", []byte("lang-frame")) {
		t.Fatal("SetLanguageBroadcast returned false for a registered originator")
	}

	if sess.Language() != "go" {
		t.Errorf("Language() = %q, want %q", sess.Language(), "go")
	}
	for name, sink := range map[string]*recordSink{"originator": sinkA, "other": sinkB} {
		if got := sink.received(); len(got) != 1 || got[0] != "lang-frame" {
			t.Errorf("%s received %v, want [lang-frame]", name, got)
		}
	}
}

func TestCursorBroadcastUpdatesRegistry(t *testing.T) {
	sess := newSession("abc", "python")
	sinkB := &recordSink{}
	sess.Join("conn-a", &recordSink{}, nil)
	sess.Join("conn-b", sinkB, nil)

	cur := protocol.Cursor{Line: 3, Col: 7}
	sel := &protocol.Selection{Start: protocol.Cursor{Line: 3, Col: 0}, End: cur}
	if !sess.CursorBroadcast("conn-a", cur, sel, []byte("cursor-frame")) {
		t.Fatal("CursorBroadcast returned false for a registered originator")
	}

	ps := sess.Participants()
	if ps[0].Cursor != cur {
		t.Errorf("cursor = %+v, want %+v", ps[0].Cursor, cur)
	}
	if ps[0].Selection == nil || *ps[0].Selection != *sel {
		t.Errorf("selection = %+v, want %+v", ps[0].Selection, sel)
	}
	if got := sinkB.received(); len(got) != 1 || got[0] != "cursor-frame" {
		t.Errorf("other participant received %v, want [cursor-frame]", got)
	}
}

func TestCursorBroadcastStaleNoOp(t *testing.T) {
	sess := newSession("abc", "python")
	sess.Join("conn-a", &recordSink{}, nil)

	if sess.CursorBroadcast("gone", protocol.Cursor{Line: 1}, nil, []byte("frame")) {
		t.Error("CursorBroadcast should return false for an unregistered originator")
	}
	if n := sess.Count(); n != 1 {
		t.Errorf("registry corrupted by stale update, Count() = %d, want 1", n)
	}
}

func TestLeaveBroadcastsToRemaining(t *testing.T) {
	sess := newSession("abc", "python")
	sinkB := &recordSink{}
	sess.Join("conn-a", &recordSink{}, nil)
	sess.Join("conn-b", sinkB, nil)

	removed, empty := sess.Leave("conn-a", []byte("left-frame"))
	if !removed {
		t.Error("Leave should report removal of a registered participant")
	}
	if empty {
		t.Error("session should not be empty with one participant remaining")
	}
	if got := sinkB.received(); len(got) != 1 || got[0] != "left-frame" {
		t.Errorf("remaining participant received %v, want [left-frame]", got)
	}

	removed, empty = sess.Leave("conn-b", []byte("left-frame"))
	if !removed || !empty {
		t.Errorf("final Leave = (%v, %v), want (true, true)", removed, empty)
	}
}

func TestJoinDeliversWelcomeFirst(t *testing.T) {
	sess := newSession("abc", "python")
	sink := &recordSink{}

	_, _, err := sess.Join("conn-a", sink, func(p protocol.Participant, snap Snapshot) []byte {
		return []byte("welcome:" + snap.Doc)
	})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if got := sink.received(); len(got) != 1 || got[0] != "welcome:" {
		t.Errorf("joiner received %v, want just the welcome frame", got)
	}
}

// The welcome frame is enqueued inside Join's critical section, so even with
// edits racing the join no broadcast may land in the joiner's queue ahead of
// it, and every update the joiner does receive must be at least as new as
// the snapshot the welcome frame was built from.
func TestJoinWelcomeOrderedAgainstRacingEdits(t *testing.T) {
	sess := newSession("abc", "python")
	sess.Join("editor", &recordSink{}, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			doc := strconv.Itoa(i)
			sess.SetDocBroadcast("editor", doc, []byte("doc:"+doc))
		}
	}()

	for i := 0; i < 50; i++ {
		sink := &recordSink{}
		id := fmt.Sprintf("conn-%d", i)
		_, _, err := sess.Join(id, sink, func(p protocol.Participant, snap Snapshot) []byte {
			return []byte("welcome:" + snap.Doc)
		})
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		sess.Leave(id, nil)

		frames := sink.received()
		if len(frames) == 0 || !strings.HasPrefix(frames[0], "welcome:") {
			t.Fatalf("first frame = %v, want the welcome frame", frames)
		}
		base := docValue(strings.TrimPrefix(frames[0], "welcome:"))
		for _, f := range frames[1:] {
			if !strings.HasPrefix(f, "doc:") {
				t.Fatalf("unexpected frame %q", f)
			}
			if docValue(strings.TrimPrefix(f, "doc:")) < base {
				t.Fatalf("update %q is older than the snapshot in %q", f, frames[0])
			}
		}
	}
	close(stop)
	wg.Wait()
}

func docValue(doc string) int {
	if doc == "" {
		return -1
	}
	n, err := strconv.Atoi(doc)
	if err != nil {
		return -1
	}
	return n
}

func TestLeaveNilFrameSkipsBroadcast(t *testing.T) {
	sess := newSession("abc", "python")
	sinkB := &recordSink{}
	sess.Join("conn-a", &recordSink{}, nil)
	sess.Join("conn-b", sinkB, nil)

	removed, _ := sess.Leave("conn-a", nil)
	if !removed {
		t.Fatal("Leave should report removal of a registered participant")
	}
	if got := sinkB.received(); len(got) != 0 {
		t.Errorf("remaining participant received %v for a nil frame", got)
	}
}

func TestLeaveUnknownConn(t *testing.T) {
	sess := newSession("abc", "python")
	sess.Join("conn-a", &recordSink{}, nil)

	removed, empty := sess.Leave("gone", nil)
	if removed {
		t.Error("Leave should not report removal for an unknown connection")
	}
	if empty {
		t.Error("session with one participant reported empty")
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	sess := newSession("abc", "python")
	sess.Join("conn-a", &recordSink{}, nil)
	sess.SetDocBroadcast("conn-a", "x = 1", nil)

	first := sess.Snapshot()
	second := sess.Snapshot()

	if first.Doc != second.Doc || first.Language != second.Language {
		t.Errorf("snapshots differ without intervening writes: %+v vs %+v", first, second)
	}
	if len(first.Participants) != len(second.Participants) {
		t.Errorf("participant counts differ: %d vs %d", len(first.Participants), len(second.Participants))
	}
}

func TestParticipantsJoinOrder(t *testing.T) {
	sess := newSession("abc", "python")
	for _, id := range []string{"c1", "c2", "c3"} {
		sess.Join(id, &recordSink{}, nil)
	}

	ps := sess.Participants()
	want := []string{"User1", "User2", "User3"}
	for i, name := range want {
		if ps[i].Name != name {
			t.Errorf("Participants()[%d].Name = %q, want %q", i, ps[i].Name, name)
		}
	}
}
