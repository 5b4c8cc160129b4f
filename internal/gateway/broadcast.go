package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/acadnet/collab-gateway/internal/rooms"
)

// Server-initiated notification surface, called by the hosting application
// when a domain event happens on the ordinary request/response path. All
// methods are fire-and-forget: a principal who is not connected, or not
// joined to the relevant room, simply does not receive the event.

// SendGroupInvitation delivers an invitation directly to a principal's
// tracked connection. A no-op when the principal is not connected.
func (a *App) SendGroupInvitation(principalID string, payload any) {
	entry, ok := a.registry.Lookup(principalID)
	if !ok {
		return
	}
	sess, ok := a.session(entry.ConnID)
	if !ok {
		return
	}
	a.emit(sess, OutGroupInvitation, payload)
}

func (a *App) BroadcastInvitationAcceptance(groupID string, payload any) {
	a.toGroup(groupID, OutInvitationAccepted, payload)
}

func (a *App) BroadcastInvitationRejection(groupID string, payload any) {
	a.toGroup(groupID, OutInvitationRejected, payload)
}

func (a *App) BroadcastMembershipChange(groupID string, payload any) {
	a.toGroup(groupID, OutMembershipChange, payload)
}

func (a *App) BroadcastGroupUpdate(groupID string, payload any) {
	a.toGroup(groupID, OutGroupUpdate, payload)
}

func (a *App) BroadcastLeadershipTransfer(groupID string, payload any) {
	a.toGroup(groupID, OutLeadershipTransfer, payload)
}

func (a *App) BroadcastGroupFinalization(groupID string, payload any) {
	a.toGroup(groupID, OutGroupFinalized, payload)
}

func (a *App) BroadcastCapacityUpdate(groupID string, payload any) {
	a.toGroup(groupID, OutCapacityUpdate, payload)
}

func (a *App) BroadcastTypingStatus(groupID string, payload any) {
	a.toGroup(groupID, OutTypingIndicator, payload)
}

func (a *App) BroadcastNewMessage(projectID string, payload any) {
	a.toProject(projectID, OutNewMessage, payload)
}

func (a *App) BroadcastMessageUpdate(projectID string, payload any) {
	a.toProject(projectID, OutMessageUpdated, payload)
}

func (a *App) BroadcastMessageDelete(projectID string, payload any) {
	a.toProject(projectID, OutMessageDeleted, payload)
}

func (a *App) BroadcastReactionUpdate(projectID string, payload any) {
	a.toProject(projectID, OutReactionUpdated, payload)
}

// NotifyInvitationAutoRejected pushes a system notification to the private
// room of the principal linked to a student profile. Used when the caller
// has no session handle for the target, only the student id.
func (a *App) NotifyInvitationAutoRejected(ctx context.Context, studentID, groupID, reason string) {
	p, err := a.principals.ResolveByStudent(ctx, studentID)
	if err != nil {
		a.logger.Error("Could not resolve student for auto-reject notification",
			slog.String("studentID", studentID), slog.Any("error", err))
		return
	}

	payload := map[string]string{
		"type":      "invitation_auto_rejected",
		"groupId":   groupID,
		"reason":    reason,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	frame, err := encode(OutSystemNotification, payload)
	if err != nil {
		a.logger.Error("failed to encode system notification", slog.Any("error", err))
		return
	}
	a.rooms.Broadcast(rooms.PrivateRoom(p.ID), uuid.Nil, frame)
}

func (a *App) toGroup(groupID, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		a.logger.Error("failed to encode broadcast", slog.String("event", event), slog.Any("error", err))
		return
	}
	a.rooms.Broadcast(rooms.GroupRoom(groupID), uuid.Nil, frame)
}

func (a *App) toProject(projectID, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		a.logger.Error("failed to encode broadcast", slog.String("event", event), slog.Any("error", err))
		return
	}
	a.rooms.Broadcast(rooms.ProjectRoom(projectID), uuid.Nil, frame)
}
