package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/acadnet/collab-gateway/internal/rooms"
)

// EventRouter authorizes and dispatches every client-originated event. Room
// membership is advisory, so every event that can alter another client's
// view of shared state is re-validated against current membership here, not
// trusted from a prior join.
type EventRouter struct {
	logger *slog.Logger
	app    *App
}

func newEventRouter(logger *slog.Logger, app *App) *EventRouter {
	return &EventRouter{
		logger: logger.With(slog.String("component", "event_router")),
		app:    app,
	}
}

func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	sess, ok := r.app.session(connID)
	if !ok {
		r.logger.Warn("Event from unknown connection", slog.String("connID", connID.String()))
		return
	}

	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		r.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		r.app.emitError(sess, "malformed message")
		return
	}

	switch env.Event {
	case EvtJoinGroupRooms:
		r.app.joinGroupRooms(ctx, sess)
	case EvtLeaveGroupRooms:
		r.app.leaveGroupRooms(sess)
	case EvtGroupActivity:
		r.handleGroupActivity(ctx, sess, env.Payload)
	case EvtMemberJoinUpdate:
		r.relayGroupEvent(ctx, sess, env.Payload, OutMembershipChange, "join")
	case EvtMemberLeaveUpdate:
		r.relayGroupEvent(ctx, sess, env.Payload, OutMembershipChange, "leave")
	case EvtLeadershipTransfer:
		r.relayGroupEvent(ctx, sess, env.Payload, OutLeadershipTransfer, "")
	case EvtGroupFinalization:
		r.relayGroupEvent(ctx, sess, env.Payload, OutGroupFinalized, "")
	case EvtInvitationStatusUpdate:
		r.relayGlobal(env.Payload)
	case EvtJoinProjectRoom:
		if projectID, ok := projectIDFrom(env.Payload); ok {
			r.app.joinProjectRoom(sess, projectID)
		} else {
			r.app.emitError(sess, "missing projectId")
		}
	case EvtLeaveProjectRoom:
		if projectID, ok := projectIDFrom(env.Payload); ok {
			r.app.leaveProjectRoom(sess, projectID)
		} else {
			r.app.emitError(sess, "missing projectId")
		}
	case EvtTyping:
		r.handleTyping(ctx, sess, env.Payload)
	default:
		r.logger.Warn("Received unknown event", slog.String("event", env.Event), slog.String("connID", connID.String()))
		r.app.emitError(sess, "unknown event: "+env.Event)
	}
}

// requireActiveMember is the authorization gate shared by every group-scoped
// event. Unauthorized events are dropped with a single error back to the
// sender; a membership-lookup failure is logged and treated as a drop
// without an error, so transient resolver faults do not bounce clients.
func (r *EventRouter) requireActiveMember(ctx context.Context, sess *session, groupID string) bool {
	ok, err := r.app.memberships.IsActiveMember(ctx, sess.principal, groupID)
	if err != nil {
		r.logger.Error("Membership check failed, dropping event",
			slog.String("principalID", sess.principal.ID),
			slog.String("groupId", groupID),
			slog.Any("error", err))
		return false
	}
	if !ok {
		r.app.emitError(sess, "not an active member of this group")
		return false
	}
	return true
}

// handleGroupActivity rebroadcasts a member's action to the rest of the
// group. Attribution fields are server-assigned so recipients never trust
// client-supplied identity.
func (r *EventRouter) handleGroupActivity(ctx context.Context, sess *session, payload json.RawMessage) {
	groupID := gjson.GetBytes(payload, "groupId").String()
	eventType := gjson.GetBytes(payload, "eventType").String()
	if groupID == "" || eventType == "" {
		r.app.emitError(sess, "group_activity requires groupId and eventType")
		return
	}
	if !r.requireActiveMember(ctx, sess, groupID) {
		return
	}

	out := map[string]any{
		"groupId":         groupID,
		"eventType":       eventType,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"triggeredBy":     sess.principal.ID,
		"triggeredByName": sess.principal.Name,
	}
	if data := gjson.GetBytes(payload, "eventData"); data.Exists() {
		out["eventData"] = json.RawMessage(data.Raw)
	}
	r.broadcastGroup(sess, groupID, OutGroupActivity, out)
}

// relayGroupEvent handles the secondary notifications the client emits after
// an HTTP-layer action (member joined/left, leadership transfer, group
// finalized). They pass the same membership gate as group_activity.
func (r *EventRouter) relayGroupEvent(ctx context.Context, sess *session, payload json.RawMessage, outEvent, change string) {
	groupID := gjson.GetBytes(payload, "groupId").String()
	if groupID == "" {
		r.app.emitError(sess, "missing groupId")
		return
	}
	if !r.requireActiveMember(ctx, sess, groupID) {
		return
	}

	out := rawToMap(payload)
	if change != "" {
		out["change"] = change
	}
	r.broadcastGroup(sess, groupID, outEvent, out)
}

// relayGlobal fans an invitation status update out to every connected
// session, sender included. It carries no room-scoped state, so there is no
// membership gate.
func (r *EventRouter) relayGlobal(payload json.RawMessage) {
	frame, err := encode(OutInvitationUpdate, payload)
	if err != nil {
		r.logger.Error("failed to encode invitation update", slog.Any("error", err))
		return
	}
	r.app.eachSession(func(s *session) {
		s.conn.Send(frame)
	})
}

func (r *EventRouter) handleTyping(ctx context.Context, sess *session, payload json.RawMessage) {
	projectID := gjson.GetBytes(payload, "projectId").String()
	if projectID == "" {
		r.app.emitError(sess, "missing projectId")
		return
	}

	ok, err := r.app.memberships.IsProjectCollaborator(ctx, sess.principal, projectID)
	if err != nil {
		r.logger.Error("Collaborator check failed, dropping typing event",
			slog.String("principalID", sess.principal.ID), slog.Any("error", err))
		return
	}
	if !ok {
		r.app.emitError(sess, "not a collaborator on this project")
		return
	}

	out := map[string]any{
		"projectId": projectID,
		"isTyping":  gjson.GetBytes(payload, "isTyping").Bool(),
		"userId":    sess.principal.ID,
		"userName":  sess.principal.Name,
	}
	frame, err := encode(OutUserTyping, out)
	if err != nil {
		r.logger.Error("failed to encode typing event", slog.Any("error", err))
		return
	}
	r.app.rooms.Broadcast(rooms.ProjectRoom(projectID), sess.conn.ID(), frame)
}

func (r *EventRouter) broadcastGroup(sess *session, groupID, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		r.logger.Error("failed to encode group event", slog.String("event", event), slog.Any("error", err))
		return
	}
	r.app.rooms.Broadcast(rooms.GroupRoom(groupID), sess.conn.ID(), frame)
}

// projectIDFrom accepts either a bare string payload or {"projectId": ...}.
func projectIDFrom(payload json.RawMessage) (string, bool) {
	res := gjson.ParseBytes(payload)
	if res.Type == gjson.String && res.String() != "" {
		return res.String(), true
	}
	if id := res.Get("projectId").String(); id != "" {
		return id, true
	}
	return "", false
}

func rawToMap(payload json.RawMessage) map[string]any {
	out := make(map[string]any)
	_ = json.Unmarshal(payload, &out)
	return out
}
