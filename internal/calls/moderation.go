package calls

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// requireModerator runs the moderator guard before any status check, so a non-moderator
// is always refused with ErrUnauthorized whatever the call status.
func requireModerator(c *Call, actorID string) error {
	if !c.isModerator(actorID) {
		return ErrUnauthorized
	}
	if !c.Status.IsLive() {
		return fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
	}
	return nil
}

// MuteAll mutes every joined participant except the moderator issuing it.
func (m *Manager) MuteAll(ctx context.Context, callID, actorID string) (Call, error) {
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if err := requireModerator(c, actorID); err != nil {
			return nil, err
		}
		muted := make([]string, 0)
		for _, p := range c.Participants {
			if p.Status != ParticipantJoined || p.UserID == actorID || p.Muted {
				continue
			}
			muted = append(muted, p.UserID)
		}
		for _, uid := range muted {
			c.record(RosterEvent{UserID: uid, Kind: RosterMuted, ActorID: actorID, At: now})
		}
		return []Transition{transition(EventMuteAll, actorID, muted...)}, nil
	})
	if err == nil {
		m.recordModeration(ctx, c, actorID, "mute_all", "", "")
	}
	return c, err
}

func (m *Manager) Lock(ctx context.Context, callID, actorID string) (Call, error) {
	return m.setLocked(ctx, callID, actorID, true)
}

func (m *Manager) Unlock(ctx context.Context, callID, actorID string) (Call, error) {
	return m.setLocked(ctx, callID, actorID, false)
}

func (m *Manager) setLocked(ctx context.Context, callID, actorID string, locked bool) (Call, error) {
	event, action := EventLocked, "lock"
	if !locked {
		event, action = EventUnlocked, "unlock"
	}
	changed := false
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		changed = false
		if err := requireModerator(c, actorID); err != nil {
			return nil, err
		}
		if c.Locked == locked {
			return nil, errNoop
		}
		c.Locked = locked
		changed = true
		return []Transition{transition(event, actorID)}, nil
	})
	if err == nil && changed {
		m.recordModeration(ctx, c, actorID, action, "", "")
	}
	return c, err
}

type InviteResult struct {
	Call         Call
	ValidUserIDs []string
}

// Invite adds conversation members to a live call.
//
// Targets that are not conversation members, the initiator, and users already invited or joined
// are filtered out silently. An empty ValidUserIDs is a successful no-op.
// Users whose latest state is left, declined, removed or seen get a fresh invited entry.
func (m *Manager) Invite(ctx context.Context, callID, actorID string, userIDs []string) (InviteResult, error) {
	var valid []string
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		valid = nil
		if err := requireModerator(c, actorID); err != nil {
			return nil, err
		}
		if c.Locked {
			return nil, ErrLocked
		}

		members, err := m.directory.ConversationMembers(ctx, c.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("%w: membership lookup: %v", ErrUnavailable, err)
		}
		memberSet := make(map[string]struct{}, len(members))
		for _, uid := range members {
			memberSet[uid] = struct{}{}
		}

		seen := map[string]struct{}{}
		for _, uid := range userIDs {
			uid = strings.TrimSpace(uid)
			if _, dup := seen[uid]; dup || uid == "" || uid == c.InitiatorID {
				continue
			}
			seen[uid] = struct{}{}
			if _, ok := memberSet[uid]; !ok {
				continue
			}
			if p, ok := c.participant(uid); ok && p.Status.IsCurrent() {
				continue
			}
			valid = append(valid, uid)
		}
		if len(valid) == 0 {
			return nil, errNoop
		}

		for _, uid := range valid {
			c.record(RosterEvent{UserID: uid, Kind: RosterInvited, ActorID: actorID, At: now})
		}
		return []Transition{
			transition(EventIncoming, actorID, valid...),
			transition(EventParticipantsInvite, actorID).with("user_ids", valid),
		}, nil
	})
	if err != nil {
		return InviteResult{}, err
	}
	if valid == nil {
		valid = []string{}
	}
	if len(valid) > 0 {
		m.recordModeration(ctx, c, actorID, "invite", "", strings.Join(valid, ","))
	}
	return InviteResult{Call: c, ValidUserIDs: valid}, nil
}

// Remove takes a participant out of the call. The initiator and the moderator themselves cannot be removed.
func (m *Manager) Remove(ctx context.Context, callID, actorID, targetID string) (Call, error) {
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if err := requireModerator(c, actorID); err != nil {
			return nil, err
		}
		if targetID == actorID || targetID == c.InitiatorID {
			return nil, fmt.Errorf("%w: cannot remove the initiator or yourself", ErrInvalidTransition)
		}
		p, ok := c.participant(targetID)
		if !ok || !p.Status.IsCurrent() {
			return nil, ErrTargetNotFound
		}

		c.record(RosterEvent{UserID: targetID, Kind: RosterRemoved, ActorID: actorID, At: now})
		trs := []Transition{
			transition(EventParticipantRemoved, actorID, targetID).with("user_id", targetID),
			transition(EventRemoved, actorID, targetID),
		}
		if c.Status == StatusActive && c.countStatus(ParticipantJoined) == 0 {
			if err := newLifecycle(c, now).fire(ctx, TriggerHangup); err != nil {
				return nil, err
			}
			trs = append(trs, transition(EventEnded, actorID).with("reason", "empty"))
		}
		return trs, nil
	})
	if err == nil {
		m.recordModeration(ctx, c, actorID, "remove", targetID, "")
	}
	return c, err
}

// Promote grants moderator to a current participant.
func (m *Manager) Promote(ctx context.Context, callID, actorID, targetID string) (Call, error) {
	changed := false
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		changed = false
		if err := requireModerator(c, actorID); err != nil {
			return nil, err
		}
		p, ok := c.participant(targetID)
		if !ok || !p.Status.IsCurrent() {
			return nil, ErrTargetNotFound
		}
		if p.Role == RoleModerator {
			return nil, errNoop
		}
		c.record(RosterEvent{UserID: targetID, Kind: RosterPromoted, ActorID: actorID, At: now})
		changed = true
		return []Transition{transition(EventParticipantPromote, actorID, targetID).with("user_id", targetID)}, nil
	})
	if err == nil && changed {
		m.recordModeration(ctx, c, actorID, "promote", targetID, "")
	}
	return c, err
}

// Mute sets a participant's mute flag. Allowed for the initiator, or for a participant muting themselves.
func (m *Manager) Mute(ctx context.Context, callID, actorID, targetID string, muted bool) (Call, error) {
	return m.mutate(ctx, callID, true, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if !c.Status.IsLive() {
			return nil, fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
		}
		if actorID != c.InitiatorID && actorID != targetID {
			return nil, ErrUnauthorized
		}
		p, ok := c.participant(targetID)
		if !ok || !p.Status.IsCurrent() {
			return nil, ErrTargetNotFound
		}
		if p.Muted == muted {
			return nil, errNoop
		}
		kind := RosterMuted
		if !muted {
			kind = RosterUnmuted
		}
		c.record(RosterEvent{UserID: targetID, Kind: kind, ActorID: actorID, At: now})
		return []Transition{
			transition(EventParticipantMuted, actorID, targetID).with("user_id", targetID).with("muted", muted),
		}, nil
	})
}

// Hold toggles hold. The initiator flips initiator_on_hold; a joined participant flips their own on_hold.
func (m *Manager) Hold(ctx context.Context, callID, actorID string, onHold bool) (Call, error) {
	return m.mutate(ctx, callID, true, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if !c.Status.IsLive() {
			return nil, fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
		}
		if actorID == c.InitiatorID {
			if c.InitiatorOnHold == onHold {
				return nil, errNoop
			}
			c.InitiatorOnHold = onHold
		} else {
			p, ok := c.participant(actorID)
			if !ok || p.Status == ParticipantRemoved {
				return nil, ErrUnauthorized
			}
			if p.Status != ParticipantJoined {
				return nil, fmt.Errorf("%w: participant is %s", ErrInvalidTransition, p.Status)
			}
			if p.OnHold == onHold {
				return nil, errNoop
			}
			kind := RosterHeld
			if !onHold {
				kind = RosterResumed
			}
			c.record(RosterEvent{UserID: actorID, Kind: kind, ActorID: actorID, At: now})
		}
		return []Transition{transition(EventHold, actorID).with("user_id", actorID).with("on_hold", onHold)}, nil
	})
}
