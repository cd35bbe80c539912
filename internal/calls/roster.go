package calls

import "time"

// RosterEvent is one append-only entry in a call's roster log.
// The current roster is the fold of these events, latest state per user.
type RosterEvent struct {
	Seq     int             `json:"seq"`
	UserID  string          `json:"user_id"`
	Kind    RosterEventKind `json:"kind"`
	ActorID string          `json:"actor_id,omitempty"`
	Role    Role            `json:"role,omitempty"`
	At      time.Time       `json:"at"`
}

type RosterEventKind string

const (
	RosterInvited  RosterEventKind = "invited"
	RosterJoined   RosterEventKind = "joined"
	RosterLeft     RosterEventKind = "left"
	RosterDeclined RosterEventKind = "declined"
	RosterRemoved  RosterEventKind = "removed"
	RosterSeen     RosterEventKind = "seen"
	RosterPromoted RosterEventKind = "promoted"
	RosterMuted    RosterEventKind = "muted"
	RosterUnmuted  RosterEventKind = "unmuted"
	RosterHeld     RosterEventKind = "held"
	RosterResumed  RosterEventKind = "resumed"
)

// record appends an event and re-projects the roster.
func (c *Call) record(e RosterEvent) {
	e.Seq = len(c.History) + 1
	c.History = append(c.History, e)
	c.Participants = projectRoster(c.History)
}

func projectRoster(events []RosterEvent) []Participant {
	index := map[string]int{}
	out := make([]Participant, 0)
	for _, e := range events {
		i, ok := index[e.UserID]
		if !ok {
			i = len(out)
			index[e.UserID] = i
			out = append(out, Participant{UserID: e.UserID, Role: RoleMember})
		}
		applyEvent(&out[i], e)
	}
	return out
}

func applyEvent(p *Participant, e RosterEvent) {
	at := e.At
	if e.Role != "" {
		p.Role = e.Role
	}
	switch e.Kind {
	case RosterInvited:
		p.Status = ParticipantInvited
		p.LeftAt = nil
		p.Muted, p.MutedAt, p.MutedBy = false, nil, ""
		p.OnHold, p.HoldAt = false, nil
	case RosterJoined:
		p.Status = ParticipantJoined
		p.JoinedAt = &at
		p.LeftAt = nil
	case RosterLeft, RosterRemoved:
		if e.Kind == RosterLeft {
			p.Status = ParticipantLeft
		} else {
			p.Status = ParticipantRemoved
			p.Role = RoleMember
		}
		p.LeftAt = &at
		p.OnHold, p.HoldAt = false, nil
	case RosterDeclined:
		p.Status = ParticipantDeclined
	case RosterSeen:
		p.Status = ParticipantSeen
	case RosterPromoted:
		p.Role = RoleModerator
	case RosterMuted:
		p.Muted, p.MutedAt, p.MutedBy = true, &at, e.ActorID
	case RosterUnmuted:
		p.Muted, p.MutedAt, p.MutedBy = false, nil, ""
	case RosterHeld:
		p.OnHold, p.HoldAt = true, &at
	case RosterResumed:
		p.OnHold, p.HoldAt = false, nil
	}
}

// participant returns the current roster entry for userID.
func (c *Call) participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// effectiveRole is the single authority lookup used by every guard.
// The initiator gains moderator when their roster record is created at join time.
// Removed users hold no role.
func (c *Call) effectiveRole(userID string) (Role, bool) {
	p, ok := c.participant(userID)
	if !ok || p.Status == ParticipantRemoved {
		return "", false
	}
	return p.Role, true
}

func (c *Call) isModerator(userID string) bool {
	r, ok := c.effectiveRole(userID)
	return ok && r == RoleModerator
}

// isMember reports whether userID may act on the call at all: the initiator or anyone on the roster.
func (c *Call) isMember(userID string) bool {
	if userID == c.InitiatorID {
		return true
	}
	_, ok := c.participant(userID)
	return ok
}

func (c *Call) countStatus(s ParticipantStatus) int {
	n := 0
	for _, p := range c.Participants {
		if p.Status == s {
			n++
		}
	}
	return n
}

func (c *Call) usersWithStatus(s ParticipantStatus) []string {
	out := make([]string, 0)
	for _, p := range c.Participants {
		if p.Status == s {
			out = append(out, p.UserID)
		}
	}
	return out
}

// Resolved returns a copy with derived participant states applied:
// invitees of a terminal call read as missed.
func (c Call) Resolved() Call {
	if !c.Status.IsTerminal() {
		return c
	}
	out := c.Clone()
	for i := range out.Participants {
		if out.Participants[i].Status == ParticipantInvited {
			out.Participants[i].Status = ParticipantMissed
		}
	}
	return out
}

// StatusFor returns userID's roster status with derived states applied.
func (c Call) StatusFor(userID string) (ParticipantStatus, bool) {
	p, ok := c.participant(userID)
	if !ok {
		return "", false
	}
	if p.Status == ParticipantInvited && c.Status.IsTerminal() {
		return ParticipantMissed, true
	}
	return p.Status, true
}

// IsMissedFor reports whether the call belongs in userID's missed list.
func (c Call) IsMissedFor(userID string) bool {
	s, ok := c.StatusFor(userID)
	if !ok {
		return false
	}
	switch {
	case s == ParticipantMissed && c.Status == StatusEnded:
		return true
	case s == ParticipantDeclined && c.Status == StatusDeclined:
		return true
	}
	return false
}

// IsWaitingFor reports whether userID is still being rung.
func (c Call) IsWaitingFor(userID string) bool {
	p, ok := c.participant(userID)
	return ok && p.Status == ParticipantInvited && (c.Status == StatusInitiated || c.Status == StatusRinging)
}
