package audit

import "time"

// Event is an immutable, append-only record of a moderation action on a call.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id and type are required.
// - Recording is best-effort; a failed append never blocks the call transition that caused it.
//
// Storage (Postgres): table call_audit_events, INSERT-only.
type Event struct {
	ID             string    `json:"id" db:"id"`
	CallID         string    `json:"call_id" db:"call_id"`
	ConversationID string    `json:"conversation_id,omitempty" db:"conversation_id"`
	Type           EventType `json:"type" db:"type"`

	// ActorUserID is the moderator who acted.
	ActorUserID string `json:"actor_user_id" db:"actor_user_id"`
	// TargetUserID is set for actions aimed at one participant (remove, promote).
	TargetUserID string `json:"target_user_id,omitempty" db:"target_user_id"`

	// Metadata is free-form detail, e.g. the comma-separated invitee list.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeLock    EventType = "lock"
	EventTypeUnlock  EventType = "unlock"
	EventTypeMuteAll EventType = "mute_all"
	EventTypeInvite  EventType = "invite"
	EventTypeRemove  EventType = "remove"
	EventTypePromote EventType = "promote"
	EventTypeEndAll  EventType = "end_all"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeLock, EventTypeUnlock, EventTypeMuteAll, EventTypeInvite, EventTypeRemove, EventTypePromote, EventTypeEndAll:
		return true
	}
	return false
}
