// Package gateway is the real-time collaboration gateway: it authenticates
// websocket connections, tracks which principal owns which connection, joins
// connections to group/project/private rooms and fans domain events out to
// them.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/acadnet/collab-gateway/internal/directory"
	"github.com/acadnet/collab-gateway/internal/registry"
	"github.com/acadnet/collab-gateway/internal/rooms"
	"github.com/acadnet/collab-gateway/pkg/config"
	"github.com/acadnet/collab-gateway/pkg/transport"
)

type App struct {
	logger *slog.Logger
	cfg    *config.Config

	verifier    directory.TokenVerifier
	principals  directory.PrincipalResolver
	memberships directory.MembershipResolver

	registry *registry.Registry
	rooms    *rooms.Manager
	router   *EventRouter

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	wg   sync.WaitGroup
	http *http.Server
	ctx  context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config,
	verifier directory.TokenVerifier, principals directory.PrincipalResolver,
	memberships directory.MembershipResolver) *App {

	app := &App{
		logger:      logger,
		cfg:         cfg,
		verifier:    verifier,
		principals:  principals,
		memberships: memberships,
		registry:    registry.New(logger),
		rooms:       rooms.NewManager(logger),
		sessions:    make(map[uuid.UUID]*session),
		ctx:         rootCtx,
	}
	app.router = newEventRouter(logger, app)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", app.upgradeHandler)
	mux.Handle("/metrics", app.metricsHandler())

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return app.ctx
		},
	}
	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Gateway starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// bearerToken extracts the credential from the Authorization header or the
// `token` query parameter; clients vary in where they can put it.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// upgradeHandler gates every connection attempt behind the authentication
// handshake. No event handler is reachable until the gate passes; a failed
// handshake never touches the registry or any room.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		a.logger.Warn("Connection rejected: no credential", slog.String("remoteAddr", r.RemoteAddr))
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	hsCtx, cancel := context.WithTimeout(r.Context(), a.cfg.Server.HandshakeTimeout)
	defer cancel()

	identity, err := a.verifier.Verify(hsCtx, token)
	if err != nil {
		a.logger.Warn("Connection rejected: invalid credential",
			slog.String("remoteAddr", r.RemoteAddr), slog.Any("error", err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	principal, err := a.principals.Resolve(hsCtx, identity.Subject)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			a.logger.Warn("Connection rejected: unknown principal", slog.String("subject", identity.Subject))
			http.Error(w, "account not found", http.StatusUnauthorized)
			return
		}
		a.logger.Error("Principal lookup failed during handshake", slog.Any("error", err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	opts := &websocket.AcceptOptions{}
	if a.cfg.Server.AllowedOrigin == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = []string{a.cfg.Server.AllowedOrigin}
	}
	wsConn, err := websocket.Accept(w, r, opts)
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	connLogger := a.logger.With(slog.String("principalID", principal.ID))
	conn := transport.NewConnection(r.Context(), &a.wg, wsConn, transport.ConnectionConfig(a.cfg.Transport), connLogger)
	sess := &session{conn: conn, principal: principal}
	a.addSession(sess)

	conn.SetMessageHandler(a.router.HandleMessage)
	conn.SetCloseHandler(func(id uuid.UUID, err error) {
		a.onDisconnect(sess, id)
	})

	// Post-connect step, queued before the pumps start so the client
	// observes registration and room joins strictly before `connected`.
	a.completeConnect(hsCtx, sess)

	connLogger.Info("Connection established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// completeConnect registers the principal and auto-joins their group rooms.
// Registration requires domain data (a linked student profile); a faculty or
// admin session stays connected but untracked.
func (a *App) completeConnect(ctx context.Context, sess *session) {
	p := sess.principal
	membership, err := a.memberships.ActiveMembership(ctx, p)
	if err != nil {
		a.logger.Error("Membership lookup failed on connect",
			slog.String("principalID", p.ID), slog.Any("error", err))
		membership = nil
	}

	if p.StudentID != "" {
		groupID := ""
		if membership != nil {
			groupID = membership.GroupID
		}
		a.registry.Register(registry.Entry{
			PrincipalID: p.ID,
			ConnID:      sess.conn.ID(),
			Name:        p.Name,
			StudentID:   p.StudentID,
			GroupID:     groupID,
		})
	}

	a.joinRooms(sess, membership)
	a.emit(sess, OutConnected, map[string]string{
		"userId": p.ID,
		"name":   p.Name,
	})
}

// joinGroupRooms joins the session to its active group's room and to the
// principal's private-notification room. No active membership is not an
// error: the client may be between groups.
func (a *App) joinGroupRooms(ctx context.Context, sess *session) {
	membership, err := a.memberships.ActiveMembership(ctx, sess.principal)
	if err != nil {
		a.logger.Error("Membership lookup failed, skipping room join",
			slog.String("principalID", sess.principal.ID), slog.Any("error", err))
		return
	}
	a.joinRooms(sess, membership)
}

func (a *App) joinRooms(sess *session, membership *directory.Membership) {
	if membership == nil {
		return
	}
	a.rooms.Join(rooms.GroupRoom(membership.GroupID), sess.conn)
	a.rooms.Join(rooms.PrivateRoom(sess.principal.ID), sess.conn)
	// Keep the registry's group snapshot current for a client that gained
	// a group after connecting.
	a.registry.UpdateGroup(sess.principal.ID, sess.conn.ID(), membership.GroupID)
	a.emit(sess, OutJoinedGroupRoom, map[string]string{"groupId": membership.GroupID})
}

// leaveGroupRooms removes the session from every room it occupies.
func (a *App) leaveGroupRooms(sess *session) {
	a.rooms.LeaveAll(sess.conn.ID())
}

func (a *App) joinProjectRoom(sess *session, projectID string) {
	a.rooms.Join(rooms.ProjectRoom(projectID), sess.conn)
	a.emit(sess, OutJoinedProjectRoom, map[string]string{"projectId": projectID})
}

func (a *App) leaveProjectRoom(sess *session, projectID string) {
	a.rooms.Leave(rooms.ProjectRoom(projectID), sess.conn.ID())
}

// onDisconnect tears down one connection's footprint. Registry removal is
// guarded by connection id, so a stale session disconnecting after a
// reconnect cannot evict the newer session's entry.
func (a *App) onDisconnect(sess *session, connID uuid.UUID) {
	a.rooms.LeaveAll(connID)
	a.registry.Remove(sess.principal.ID, connID)
	a.removeSession(connID)
	a.logger.Debug("Connection cleaned up",
		slog.String("principalID", sess.principal.ID),
		slog.String("connID", connID.String()),
	)
}

// ConnectionStats exposes the registry counts to the hosting application.
func (a *App) ConnectionStats() registry.Stats {
	return a.registry.Stats()
}

// Shutdown runs the graceful teardown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down gateway...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.eachSession(func(s *session) {
		s.conn.Close(errors.New("graceful shutdown"))
	})

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Gateway shut down gracefully.")
	return nil
}
