package notify

import "telecom-calls/internal/calls"

// Audience returns the users a transition is delivered to, in a stable order.
//
//   - call:incoming and call:removed go to the targets only.
//   - call:ended goes to everyone who was ever on the roster plus the initiator, actor included.
//   - everything else goes to the initiator and every invited or joined participant,
//     plus the targets, minus the actor. call:participant-removed skips its target.
func Audience(t calls.Transition) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	switch t.Event {
	case calls.EventIncoming, calls.EventRemoved:
		for _, u := range t.Targets {
			add(u)
		}
		return out
	case calls.EventEnded:
		add(t.Call.InitiatorID)
		for _, p := range t.Call.Participants {
			add(p.UserID)
		}
		return out
	}

	// The actor is excluded up front so later adds skip it.
	seen[t.ActorID] = struct{}{}
	// A removed user learns about it through call:removed alone.
	if t.Event == calls.EventParticipantRemoved {
		for _, u := range t.Targets {
			seen[u] = struct{}{}
		}
	}
	add(t.Call.InitiatorID)
	for _, p := range t.Call.Participants {
		if p.Status.IsCurrent() {
			add(p.UserID)
		}
	}
	for _, u := range t.Targets {
		add(u)
	}
	return out
}

// Payload is the event body. Every event carries enough of the call for a client to
// redraw its call view without a follow-up read.
func Payload(t calls.Transition) map[string]any {
	c := t.Call
	p := map[string]any{
		"call_id":         c.CallID,
		"conversation_id": c.ConversationID,
		"initiator_id":    c.InitiatorID,
		"type":            string(c.Type),
		"status":          string(c.Status),
		"actor_id":        t.ActorID,
		"participants":    c.Participants,
		"locked":          c.Locked,
	}
	if c.EndedAt != nil {
		p["ended_at"] = c.EndedAt
	}
	if c.Duration != nil {
		p["duration"] = *c.Duration
	}
	for k, v := range t.Data {
		p[k] = v
	}
	return p
}
