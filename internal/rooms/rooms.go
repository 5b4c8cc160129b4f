// Package rooms implements named broadcast topics. A room exists exactly as
// long as at least one connection is joined to it; membership here is
// advisory and is re-validated by the event router on every inbound event.
package rooms

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Room name families. One topic per group, one per project chat, one
// private topic per principal.
const (
	groupPrefix   = "group_"
	projectPrefix = "project_"
	privatePrefix = "user_"
)

func GroupRoom(groupID string) string       { return groupPrefix + groupID }
func ProjectRoom(projectID string) string   { return projectPrefix + projectID }
func PrivateRoom(principalID string) string { return privatePrefix + principalID }

// Conn is the slice of a transport connection the room manager needs.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
}

type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]map[uuid.UUID]Conn
	joined map[uuid.UUID]map[string]struct{}

	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		rooms:  make(map[string]map[uuid.UUID]Conn),
		joined: make(map[uuid.UUID]map[string]struct{}),
		logger: logger.With(slog.String("component", "rooms")),
	}
}

// Join adds a connection to a room, creating the room if needed. Joining a
// room twice is a no-op.
func (m *Manager) Join(room string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]Conn)
		m.rooms[room] = members
	}
	members[conn.ID()] = conn

	joined, ok := m.joined[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		m.joined[conn.ID()] = joined
	}
	joined[room] = struct{}{}

	m.logger.Debug("connection joined room", slog.String("room", room), slog.String("connID", conn.ID().String()))
}

// Leave removes a connection from a room. Empty rooms are deleted.
func (m *Manager) Leave(room string, connID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(room, connID)
}

// LeaveAll removes a connection from every room it occupies. Used on an
// explicit client leave signal and on disconnect cleanup.
func (m *Manager) LeaveAll(connID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room := range m.joined[connID] {
		m.leaveLocked(room, connID)
	}
}

func (m *Manager) leaveLocked(room string, connID uuid.UUID) {
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, room)
	}

	if joined, ok := m.joined[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(m.joined, connID)
		}
	}
}

// Broadcast fans a frame out to every connection in a room. exclude skips
// one connection (the sender); pass uuid.Nil to deliver to all members.
// Delivery goes through each connection's buffered send queue, so one slow
// client cannot stall the fan-out.
func (m *Manager) Broadcast(room string, exclude uuid.UUID, frame []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, conn := range m.rooms[room] {
		if id == exclude {
			continue
		}
		conn.Send(frame)
	}
}

// Rooms returns the names of the rooms a connection currently occupies.
func (m *Manager) Rooms(connID uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.joined[connID]))
	for room := range m.joined[connID] {
		out = append(out, room)
	}
	return out
}

// MemberCount returns the number of connections joined to a room.
func (m *Manager) MemberCount(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}
