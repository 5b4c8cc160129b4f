// Package registry tracks which principals are currently connected. It is
// the single source of truth for "who is online and on which connection".
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is the tracked connection for one online principal. One entry per
// principal: a reconnect overwrites the previous entry, so the most recent
// session receives private-channel pushes.
type Entry struct {
	PrincipalID  string
	ConnID       uuid.UUID
	Name         string
	StudentID    string
	GroupID      string // active group at registration time, may be empty
	RegisteredAt time.Time
}

// Stats is the operational snapshot exposed to the hosting application.
type Stats struct {
	Principals int
	Groups     int
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	logger *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Register inserts or overwrites the entry for a principal. Last write wins.
func (r *Registry) Register(e Entry) {
	e.RegisteredAt = time.Now()

	r.mu.Lock()
	r.entries[e.PrincipalID] = &e
	r.mu.Unlock()

	r.logger.Debug("principal registered",
		slog.String("principalID", e.PrincipalID),
		slog.String("connID", e.ConnID.String()),
	)
}

// Lookup returns a copy of the tracked entry for a principal.
func (r *Registry) Lookup(principalID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[principalID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remove deletes the principal's entry, but only if connID is still the
// tracked connection. A stale disconnect after a reconnect must not evict
// the newer session's entry.
func (r *Registry) Remove(principalID string, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[principalID]
	if !ok || e.ConnID != connID {
		return
	}
	delete(r.entries, principalID)
	r.logger.Debug("principal deregistered",
		slog.String("principalID", principalID),
		slog.String("connID", connID.String()),
	)
}

// UpdateGroup refreshes the tracked entry's group snapshot, e.g. when a
// client gains a group after connecting. Guarded by connection id like
// Remove: only the tracked connection may update its principal's entry.
func (r *Registry) UpdateGroup(principalID string, connID uuid.UUID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[principalID]
	if !ok || e.ConnID != connID {
		return
	}
	e.GroupID = groupID
}

// Stats counts distinct connected principals and the distinct groups they
// represent.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string]struct{})
	for _, e := range r.entries {
		if e.GroupID != "" {
			groups[e.GroupID] = struct{}{}
		}
	}
	return Stats{Principals: len(r.entries), Groups: len(groups)}
}
