package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType tags every envelope on the realtime channel.
type MessageType string

const (
	// Authentication
	TypeAuth        MessageType = "auth"
	TypeAuthSuccess MessageType = "auth_success"
	TypeAuthFailed  MessageType = "auth_failed"

	// State sync
	TypeRequestState MessageType = "request_state"
	TypeStateUpdate  MessageType = "state_update"

	// Supervisor actions and their broadcast echoes
	TypeAcknowledgeAlert   MessageType = "acknowledge_alert"
	TypeAlertAcknowledged  MessageType = "alert_acknowledged"
	TypeSetPriority        MessageType = "set_priority"
	TypePriorityUpdated    MessageType = "priority_updated"
	TypeAddNote            MessageType = "add_note"
	TypeNoteAdded          MessageType = "note_added"
	TypeBroadcastMessage   MessageType = "broadcast_message"
	TypeBroadcastReceived  MessageType = "broadcast_received"
	TypeLockOnDisplay      MessageType = "lock_on_display"
	TypeDisplayLocked      MessageType = "display_locked"
	TypeDismissFromDisplay MessageType = "dismiss_from_display"
	TypeDisplayDismissed   MessageType = "display_dismissed"

	// Roster
	TypeSupervisorJoined MessageType = "supervisor_joined"
	TypeSupervisorLeft   MessageType = "supervisor_left"
	TypeSupervisorList   MessageType = "supervisor_list_updated"

	// Liveness
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Envelope wraps every message on the wire. The ID makes redelivery after a
// reconnect deduplicatable on either end.
type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds an envelope with a fresh ID and timestamp. A nil
// payload produces an envelope with no payload field.
func NewMessage(messageType MessageType, payload interface{}) (Envelope, error) {
	envelope := Envelope{
		ID:        uuid.NewString(),
		Type:      messageType,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
		}
		envelope.Payload = raw
	}
	return envelope, nil
}

// DecodePayload unmarshals the payload into v
func (e Envelope) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// Client types on the realtime channel.
const (
	ClientSupervisor = "supervisor"
	ClientDisplay    = "display"
)

// AuthPayload opens a connection: displays identify themselves, supervisors
// also present their session.
type AuthPayload struct {
	ClientType string `json:"clientType"`
	SessionID  string `json:"sessionId,omitempty"`
	DisplayID  string `json:"displayId,omitempty"`
}

// AuthSuccessPayload confirms authentication and carries the resolved
// supervisor identity for supervisor clients.
type AuthSuccessPayload struct {
	ConnectionID string      `json:"connectionId"`
	Supervisor   *Supervisor `json:"supervisor,omitempty"`
}

// AuthFailedPayload carries the rejection reason.
type AuthFailedPayload struct {
	Reason string `json:"reason"`
}

// AcknowledgePayload marks an alert as acknowledged.
type AcknowledgePayload struct {
	AlertID string `json:"alertId"`
	Reason  string `json:"reason,omitempty"`
}

// PriorityPayload overrides an alert's display priority.
type PriorityPayload struct {
	AlertID  string `json:"alertId"`
	Priority string `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

// NotePayload attaches a supervisor note to an alert.
type NotePayload struct {
	AlertID string `json:"alertId"`
	Note    string `json:"note"`
}

// BroadcastPayload is a time-bounded message to every connected client.
type BroadcastPayload struct {
	Message         string `json:"message"`
	Priority        string `json:"priority,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// DisplayActionPayload drives lock_on_display and dismiss_from_display.
type DisplayActionPayload struct {
	AlertID string `json:"alertId"`
	Reason  string `json:"reason,omitempty"`
}

// ActionEchoPayload is the broadcast echo of a supervisor action.
type ActionEchoPayload struct {
	AlertID  string    `json:"alertId,omitempty"`
	Actor    string    `json:"actor"`
	Priority string    `json:"priority,omitempty"`
	Note     string    `json:"note,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// BroadcastEchoPayload is the fan-out form of a broadcast_message.
type BroadcastEchoPayload struct {
	Broadcast Broadcast `json:"broadcast"`
}

// RosterPayload carries supervisor join/leave events.
type RosterPayload struct {
	Supervisor Supervisor `json:"supervisor"`
}

// RosterListPayload carries the full roster after a change.
type RosterListPayload struct {
	Supervisors []Supervisor `json:"supervisors"`
}
