package rooms_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/acadnet/collab-gateway/internal/rooms"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *rooms.Manager {
	return rooms.NewManager(newTestLogger())
}

type fakeConn struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, message)
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestJoinAndBroadcast(t *testing.T) {
	m := newTestManager()
	a, b, c := newFakeConn(), newFakeConn(), newFakeConn()

	m.Join("group_1", a)
	m.Join("group_1", b)
	m.Join("group_2", c)

	m.Broadcast("group_1", uuid.Nil, []byte("hello"))

	if a.received() != 1 || b.received() != 1 {
		t.Errorf("Expected both members to receive, got a=%d b=%d", a.received(), b.received())
	}
	if c.received() != 0 {
		t.Errorf("Expected non-member to receive nothing, got %d", c.received())
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	m := newTestManager()
	a, b := newFakeConn(), newFakeConn()

	m.Join("group_1", a)
	m.Join("group_1", b)

	m.Broadcast("group_1", a.ID(), []byte("from a"))

	if a.received() != 0 {
		t.Errorf("Expected sender to be excluded, got %d frames", a.received())
	}
	if b.received() != 1 {
		t.Errorf("Expected other member to receive 1 frame, got %d", b.received())
	}
}

func TestBroadcastToUnknownRoom(t *testing.T) {
	m := newTestManager()
	// Must be a silent no-op.
	m.Broadcast("group_missing", uuid.Nil, []byte("x"))
}

func TestDoubleJoinIsIdempotent(t *testing.T) {
	m := newTestManager()
	a := newFakeConn()

	m.Join("group_1", a)
	m.Join("group_1", a)

	if n := m.MemberCount("group_1"); n != 1 {
		t.Errorf("Expected 1 member after double join, got %d", n)
	}
	m.Broadcast("group_1", uuid.Nil, []byte("once"))
	if a.received() != 1 {
		t.Errorf("Expected exactly 1 frame, got %d", a.received())
	}
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	m := newTestManager()
	a := newFakeConn()

	m.Join("group_1", a)
	m.Leave("group_1", a.ID())

	if n := m.MemberCount("group_1"); n != 0 {
		t.Errorf("Expected empty room, got %d members", n)
	}
	if got := m.Rooms(a.ID()); len(got) != 0 {
		t.Errorf("Expected connection to occupy no rooms, got %v", got)
	}
}

func TestLeaveAll(t *testing.T) {
	m := newTestManager()
	a, b := newFakeConn(), newFakeConn()

	m.Join("group_1", a)
	m.Join("project_1", a)
	m.Join("user_a", a)
	m.Join("group_1", b)

	m.LeaveAll(a.ID())

	if got := m.Rooms(a.ID()); len(got) != 0 {
		t.Errorf("Expected no rooms after LeaveAll, got %v", got)
	}
	// The other member must be unaffected.
	m.Broadcast("group_1", uuid.Nil, []byte("still here"))
	if a.received() != 0 {
		t.Errorf("Expected departed connection to receive nothing, got %d", a.received())
	}
	if b.received() != 1 {
		t.Errorf("Expected remaining member to receive 1 frame, got %d", b.received())
	}
}

func TestRoomNames(t *testing.T) {
	if got := rooms.GroupRoom("g1"); got != "group_g1" {
		t.Errorf("GroupRoom = %q", got)
	}
	if got := rooms.ProjectRoom("p1"); got != "project_p1" {
		t.Errorf("ProjectRoom = %q", got)
	}
	if got := rooms.PrivateRoom("u1"); got != "user_u1" {
		t.Errorf("PrivateRoom = %q", got)
	}
}
