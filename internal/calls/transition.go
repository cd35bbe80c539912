package calls

import "context"

// Event is a signaling event name pushed to participants.
type Event string

const (
	EventIncoming           Event = "call:incoming"
	EventParticipantJoined  Event = "call:participant-joined"
	EventParticipantLeft    Event = "call:participant-left"
	EventDeclined           Event = "call:declined"
	EventEnded              Event = "call:ended"
	EventParticipantRemoved Event = "call:participant-removed"
	EventRemoved            Event = "call:removed"
	EventMuteAll            Event = "call:mute-all"
	EventParticipantPromote Event = "call:participant-promoted"
	EventLocked             Event = "call:locked"
	EventUnlocked           Event = "call:unlocked"

	EventParticipantMuted   Event = "call:participant-muted"
	EventHold               Event = "call:hold"
	EventParticipantsInvite Event = "call:participants-invited"
	EventTransferRequested  Event = "call:transfer-requested"
	EventTransferAccepted   Event = "call:transfer-accepted"
	EventTransferDeclined   Event = "call:transfer-declined"
	EventRecordingStarted   Event = "call:recording-started"
	EventRecordingStopped   Event = "call:recording-stopped"
)

// Transition describes one accepted, persisted state change.
//
// Targets are users the event is about (invitees, the removed user, the transfer target).
// Call is the committed document with derived statuses resolved.
type Transition struct {
	Event   Event
	Call    Call
	ActorID string
	Targets []string
	Data    map[string]any
}

// Notifier receives transitions after they are committed.
// Implementations must not block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, t Transition)
}

// AuditTrail records moderation actions. Failures are logged, never surfaced.
type AuditTrail interface {
	LogModeration(ctx context.Context, callID, conversationID, actorID, action, targetID, metadata string) error
}

// Directory answers conversation membership questions.
type Directory interface {
	IsConversationParticipant(ctx context.Context, userID, conversationID string) (bool, error)
	ConversationMembers(ctx context.Context, conversationID string) ([]string, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Transition) {}

func transition(e Event, actorID string, targets ...string) Transition {
	return Transition{Event: e, ActorID: actorID, Targets: targets}
}

func (t Transition) with(key string, v any) Transition {
	if t.Data == nil {
		t.Data = map[string]any{}
	}
	t.Data[key] = v
	return t
}
