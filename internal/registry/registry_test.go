package registry_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/acadnet/collab-gateway/internal/registry"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *registry.Registry {
	return registry.New(newTestLogger())
}

func TestRegisterAndLookup(t *testing.T) {
	r := newTestRegistry()
	connID := uuid.New()

	r.Register(registry.Entry{
		PrincipalID: "user-1",
		ConnID:      connID,
		Name:        "Ada",
		StudentID:   "student-1",
		GroupID:     "group-1",
	})

	e, ok := r.Lookup("user-1")
	if !ok {
		t.Fatal("Lookup failed to find registered principal")
	}
	if e.ConnID != connID {
		t.Errorf("Expected conn %s, got %s", connID, e.ConnID)
	}
	if e.RegisteredAt.IsZero() {
		t.Error("Expected RegisteredAt to be set")
	}

	if _, ok := r.Lookup("user-2"); ok {
		t.Error("Lookup found a principal that was never registered")
	}
}

func TestReconnectOverwrites(t *testing.T) {
	r := newTestRegistry()
	oldConn := uuid.New()
	newConn := uuid.New()

	r.Register(registry.Entry{PrincipalID: "user-1", ConnID: oldConn})
	r.Register(registry.Entry{PrincipalID: "user-1", ConnID: newConn})

	e, ok := r.Lookup("user-1")
	if !ok {
		t.Fatal("Lookup failed after reconnect")
	}
	if e.ConnID != newConn {
		t.Errorf("Expected newest connection to be tracked, got %s", e.ConnID)
	}

	stats := r.Stats()
	if stats.Principals != 1 {
		t.Errorf("Expected 1 principal after reconnect, got %d", stats.Principals)
	}
}

func TestRemoveIsGuardedByConnID(t *testing.T) {
	r := newTestRegistry()
	oldConn := uuid.New()
	newConn := uuid.New()

	r.Register(registry.Entry{PrincipalID: "user-1", ConnID: oldConn})
	r.Register(registry.Entry{PrincipalID: "user-1", ConnID: newConn})

	// The old session disconnecting must not evict the new session's entry.
	r.Remove("user-1", oldConn)
	if _, ok := r.Lookup("user-1"); !ok {
		t.Fatal("Stale disconnect evicted the newer session's entry")
	}

	r.Remove("user-1", newConn)
	if _, ok := r.Lookup("user-1"); ok {
		t.Error("Entry still present after tracked connection disconnected")
	}
}

func TestRemoveUnknownPrincipal(t *testing.T) {
	r := newTestRegistry()
	// Must not panic or create an entry.
	r.Remove("ghost", uuid.New())
	if s := r.Stats(); s.Principals != 0 {
		t.Errorf("Expected empty registry, got %d principals", s.Principals)
	}
}

func TestUpdateGroupIsGuardedByConnID(t *testing.T) {
	r := newTestRegistry()
	tracked := uuid.New()
	stale := uuid.New()

	r.Register(registry.Entry{PrincipalID: "user-1", ConnID: tracked})

	// A stale connection must not rewrite the tracked entry's group.
	r.UpdateGroup("user-1", stale, "g-stale")
	e, _ := r.Lookup("user-1")
	if e.GroupID != "" {
		t.Errorf("Expected stale update to be ignored, got group %q", e.GroupID)
	}

	r.UpdateGroup("user-1", tracked, "g1")
	e, _ = r.Lookup("user-1")
	if e.GroupID != "g1" {
		t.Errorf("Expected group g1 after update, got %q", e.GroupID)
	}

	if s := r.Stats(); s.Groups != 1 {
		t.Errorf("Expected 1 group after update, got %d", s.Groups)
	}

	// Unknown principal is a no-op.
	r.UpdateGroup("ghost", uuid.New(), "g2")
	if s := r.Stats(); s.Groups != 1 {
		t.Errorf("Expected update of unknown principal to be a no-op, got %d groups", s.Groups)
	}
}

func TestStatsCountsDistinctGroups(t *testing.T) {
	r := newTestRegistry()

	r.Register(registry.Entry{PrincipalID: "a", ConnID: uuid.New(), GroupID: "g1"})
	r.Register(registry.Entry{PrincipalID: "b", ConnID: uuid.New(), GroupID: "g1"})
	r.Register(registry.Entry{PrincipalID: "c", ConnID: uuid.New(), GroupID: "g2"})
	// A principal between groups contributes no group.
	r.Register(registry.Entry{PrincipalID: "d", ConnID: uuid.New()})

	stats := r.Stats()
	if stats.Principals != 4 {
		t.Errorf("Expected 4 principals, got %d", stats.Principals)
	}
	if stats.Groups != 2 {
		t.Errorf("Expected 2 distinct groups, got %d", stats.Groups)
	}
}
