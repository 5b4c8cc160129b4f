package gateway

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/acadnet/collab-gateway/internal/directory"
	"github.com/acadnet/collab-gateway/internal/rooms"
)

// conn is the slice of a transport connection the gateway drives.
type conn interface {
	rooms.Conn
	Close(err error)
}

// session is one authenticated live connection. It only exists once the
// handshake has passed; an unauthenticated connection never gets one.
type session struct {
	conn      conn
	principal *directory.Principal
}

func (a *App) addSession(s *session) {
	a.mu.Lock()
	a.sessions[s.conn.ID()] = s
	a.mu.Unlock()
}

func (a *App) removeSession(connID uuid.UUID) {
	a.mu.Lock()
	delete(a.sessions, connID)
	a.mu.Unlock()
}

func (a *App) session(connID uuid.UUID) (*session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[connID]
	return s, ok
}

// eachSession snapshots the live sessions and applies fn outside the lock.
func (a *App) eachSession(fn func(*session)) {
	a.mu.RLock()
	snapshot := make([]*session, 0, len(a.sessions))
	for _, s := range a.sessions {
		snapshot = append(snapshot, s)
	}
	a.mu.RUnlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// emit sends a single event to one session.
func (a *App) emit(s *session, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		a.logger.Error("failed to encode event", slog.String("event", event), slog.Any("error", err))
		return
	}
	s.conn.Send(frame)
}

// emitError reports a rejected event back to its sender. The connection
// stays open.
func (a *App) emitError(s *session, message string) {
	a.emit(s, OutError, map[string]string{"message": message})
}
