package gateway

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-originated event names.
const (
	EvtJoinGroupRooms         = "join_group_rooms"
	EvtLeaveGroupRooms        = "leave_group_rooms"
	EvtInvitationStatusUpdate = "invitation_status_update"
	EvtGroupActivity          = "group_activity"
	EvtMemberJoinUpdate       = "member_join_update"
	EvtMemberLeaveUpdate      = "member_leave_update"
	EvtLeadershipTransfer     = "leadership_transfer"
	EvtGroupFinalization      = "group_finalization"
	EvtJoinProjectRoom        = "join_project_room"
	EvtLeaveProjectRoom       = "leave_project_room"
	EvtTyping                 = "typing"
)

// Server-originated event names.
const (
	OutConnected          = "connected"
	OutJoinedGroupRoom    = "joined_group_room"
	OutJoinedProjectRoom  = "joined_project_room"
	OutGroupUpdate        = "group_update"
	OutGroupActivity      = "group_activity"
	OutError              = "error"
	OutGroupInvitation    = "group_invitation"
	OutInvitationAccepted = "invitation_accepted"
	OutInvitationRejected = "invitation_rejected"
	OutMembershipChange   = "membership_change"
	OutLeadershipTransfer = "leadership_transfer"
	OutGroupFinalized     = "group_finalized"
	OutSystemNotification = "system_notification"
	OutCapacityUpdate     = "capacity_update"
	OutTypingIndicator    = "typing_indicator"
	OutNewMessage         = "new_message"
	OutMessageUpdated     = "message_updated"
	OutMessageDeleted     = "message_deleted"
	OutReactionUpdated    = "reaction_updated"
	OutInvitationUpdate   = "invitation_update"
	OutUserTyping         = "user_typing"
)

// encode builds the wire frame for an outbound event.
func encode(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return frame, nil
}
