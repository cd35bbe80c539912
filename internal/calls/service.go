package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telecom-calls/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a live call may sit with nobody joined before a colliding
// initiate (or the reaper) reclaims it.
const DefaultStaleAfter = 60 * time.Second

const conflictRetryDelay = 10 * time.Millisecond

// Deps are the collaborators of a Manager. Notifier and Audit are optional.
type Deps struct {
	Repo      Repository
	Directory Directory
	Notifier  Notifier
	Audit     AuditTrail
}

// Manager is the call session manager.
//
// Every mutating action follows the same path:
// load by call id -> validate against the just-loaded document -> compute the new document
// -> Repository.Update with the loaded version -> hand transitions to the Notifier.
//
// The manager never locks a call. Conflicting writes are resolved by the repository CAS.
type Manager struct {
	repo       Repository
	directory  Directory
	notifier   Notifier
	audit      AuditTrail
	staleAfter time.Duration

	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

func NewManager(d Deps, staleAfter time.Duration) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	n := d.Notifier
	if n == nil {
		n = nopNotifier{}
	}
	return &Manager{
		repo:       d.Repo,
		directory:  d.Directory,
		notifier:   n,
		audit:      d.Audit,
		staleAfter: staleAfter,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
}

// mutation computes the next document in place and returns the transitions to publish.
// Returning errNoop leaves the call untouched.
type mutation func(ctx context.Context, c *Call, now time.Time) ([]Transition, error)

// mutate runs fn under the CAS protocol.
//
// Idempotent actions retry a conflict once against a fresh load. A retry that finds the call
// already terminal is absorbed: the desired effect (the user is out of the call) already holds.
// Non-idempotent actions surface ErrConflict, or ErrCallEnded when the winner ended the call.
func (m *Manager) mutate(ctx context.Context, callID string, idempotent bool, fn mutation) (Call, error) {
	if strings.TrimSpace(callID) == "" {
		return Call{}, fmt.Errorf("%w: call_id required", ErrInvalidArgument)
	}

	var (
		result      Call
		transitions []Transition
		attempt     int
	)
	op := func() error {
		attempt++
		loaded, err := m.repo.Get(ctx, callID)
		if err != nil {
			return backoff.Permanent(err)
		}
		now := m.clock().UTC()
		next := loaded.Clone()

		trs, err := fn(ctx, &next, now)
		switch {
		case errors.Is(err, errNoop):
			result, transitions = loaded, nil
			return nil
		case err != nil:
			if attempt > 1 && loaded.Status.IsTerminal() && errors.Is(err, ErrInvalidTransition) {
				result, transitions = loaded, nil
				return nil
			}
			return backoff.Permanent(err)
		}

		next.UpdatedAt = now
		updated, err := m.repo.Update(ctx, next, loaded.Version)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result, transitions = updated, trs
		return nil
	}

	var err error
	if idempotent {
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(conflictRetryDelay), 1), ctx)
		err = backoff.Retry(op, policy)
	} else {
		err = op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if errors.Is(err, ErrConflict) {
			err = m.conflictOutcome(ctx, callID)
		}
	}
	if err != nil {
		return Call{}, err
	}

	resolved := result.Resolved()
	m.publish(ctx, resolved, transitions)
	return resolved, nil
}

func (m *Manager) conflictOutcome(ctx context.Context, callID string) error {
	c, err := m.repo.Get(ctx, callID)
	if err == nil && c.Status.IsTerminal() {
		return ErrCallEnded
	}
	return ErrConflict
}

func (m *Manager) publish(ctx context.Context, c Call, transitions []Transition) {
	log := logger.From(ctx)
	for _, t := range transitions {
		t.Call = c
		log.Info("call transition",
			"call_id", c.CallID,
			"event", string(t.Event),
			"actor_id", t.ActorID,
			"status", string(c.Status),
			"version", c.Version,
		)
		m.notifier.Notify(ctx, t)
	}
}

func (m *Manager) recordModeration(ctx context.Context, c Call, actorID, action, targetID, metadata string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogModeration(ctx, c.CallID, c.ConversationID, actorID, action, targetID, metadata); err != nil {
		logger.From(ctx).Warn("audit append failed", "call_id", c.CallID, "action", action, "err", err)
	}
}

// --- Lifecycle ---

type InitiateRequest struct {
	ConversationID string   `json:"conversation_id"`
	Type           CallType `json:"type"`
	// ParticipantIDs restricts who is rung. Empty means every other conversation member.
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

type InitiateResult struct {
	Call    Call
	Created bool
}

// Initiate starts a call in a conversation.
//
// If the conversation already has a live call that is not stale, that call is returned with
// Created=false. A stale one is reclaimed as ended and a new call is created in its place.
func (m *Manager) Initiate(ctx context.Context, actorID string, req InitiateRequest) (InitiateResult, error) {
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if actorID == "" || req.ConversationID == "" {
		return InitiateResult{}, fmt.Errorf("%w: actor and conversation_id required", ErrInvalidArgument)
	}
	if req.Type == "" {
		req.Type = CallTypeAudio
	}
	if !req.Type.Valid() {
		return InitiateResult{}, fmt.Errorf("%w: type must be audio or video", ErrInvalidArgument)
	}

	ok, err := m.directory.IsConversationParticipant(ctx, actorID, req.ConversationID)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("%w: membership lookup: %v", ErrUnavailable, err)
	}
	if !ok {
		return InitiateResult{}, ErrUnauthorized
	}

	// Two rounds: a lost Create race re-reads the winner.
	for round := 0; round < 2; round++ {
		existing, found, err := m.repo.FindLiveByConversation(ctx, req.ConversationID)
		if err != nil {
			return InitiateResult{}, err
		}
		if found {
			if !m.isStale(existing, m.clock().UTC()) {
				return InitiateResult{Call: existing.Resolved()}, nil
			}
			if _, err := m.Reclaim(ctx, existing.CallID); err != nil && !isRaceLoss(err) {
				return InitiateResult{}, err
			}
		}

		invitees, err := m.resolveInvitees(ctx, actorID, req)
		if err != nil {
			return InitiateResult{}, err
		}

		now := m.clock().UTC()
		c := Call{
			CallID:         m.newID(),
			ConversationID: req.ConversationID,
			InitiatorID:    actorID,
			Type:           req.Type,
			Status:         StatusInitiated,
			Participants:   []Participant{},
			CreatedAt:      now,
		}
		for _, uid := range invitees {
			c.record(RosterEvent{UserID: uid, Kind: RosterInvited, ActorID: actorID, At: now})
		}

		created, err := m.repo.Create(ctx, c)
		if errors.Is(err, ErrLiveCallExists) {
			continue
		}
		if err != nil {
			return InitiateResult{}, err
		}

		resolved := created.Resolved()
		m.publish(ctx, resolved, []Transition{transition(EventIncoming, actorID, invitees...)})
		return InitiateResult{Call: resolved, Created: true}, nil
	}
	return InitiateResult{}, ErrConflict
}

func isRaceLoss(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrCallEnded) || errors.Is(err, ErrConflict)
}

// resolveInvitees keeps conversation members only, in request order, without duplicates or the initiator.
func (m *Manager) resolveInvitees(ctx context.Context, actorID string, req InitiateRequest) ([]string, error) {
	members, err := m.directory.ConversationMembers(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", ErrUnavailable, err)
	}
	memberSet := make(map[string]struct{}, len(members))
	for _, uid := range members {
		memberSet[uid] = struct{}{}
	}

	candidates := req.ParticipantIDs
	if len(candidates) == 0 {
		candidates = members
	}
	seen := map[string]struct{}{actorID: {}}
	out := make([]string, 0, len(candidates))
	for _, uid := range candidates {
		uid = strings.TrimSpace(uid)
		if _, dup := seen[uid]; dup || uid == "" {
			continue
		}
		if _, ok := memberSet[uid]; !ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no callable participants", ErrInvalidArgument)
	}
	return out, nil
}

func (m *Manager) isStale(c Call, now time.Time) bool {
	if c.Status != StatusInitiated && c.Status != StatusRinging {
		return false
	}
	return now.Sub(c.CreatedAt) > m.staleAfter && c.countStatus(ParticipantJoined) == 0
}

// Reclaim ends a stale live call nobody joined.
func (m *Manager) Reclaim(ctx context.Context, callID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if !m.isStale(*c, now) {
			return nil, fmt.Errorf("%w: call is not stale", ErrInvalidTransition)
		}
		if err := newLifecycle(c, now).fire(ctx, TriggerReclaim); err != nil {
			return nil, err
		}
		return []Transition{transition(EventEnded, "").with("reason", "stale")}, nil
	})
}

// Join connects actorID to the call. The initiator becomes moderator on their first join.
func (m *Manager) Join(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
		}
		if !c.isMember(actorID) {
			return nil, ErrUnauthorized
		}
		if p, ok := c.participant(actorID); ok {
			switch p.Status {
			case ParticipantRemoved:
				return nil, ErrUnauthorized
			case ParticipantJoined:
				return nil, errNoop
			}
		}

		e := RosterEvent{UserID: actorID, Kind: RosterJoined, ActorID: actorID, At: now}
		if actorID == c.InitiatorID {
			e.Role = RoleModerator
		}
		c.record(e)

		lc := newLifecycle(c, now)
		if c.Status == StatusInitiated {
			if err := lc.fire(ctx, TriggerRing); err != nil {
				return nil, err
			}
		}
		if c.Status != StatusActive {
			if err := lc.fire(ctx, TriggerActivate); err != nil {
				return nil, err
			}
		}
		return []Transition{transition(EventParticipantJoined, actorID)}, nil
	})
}

// Leave disconnects actorID. The call ends when the initiator leaves or nobody stays joined.
func (m *Manager) Leave(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, true, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
		}
		if !c.isMember(actorID) {
			return nil, ErrUnauthorized
		}

		isInitiator := actorID == c.InitiatorID
		p, onRoster := c.participant(actorID)
		switch {
		case onRoster && p.Status == ParticipantJoined:
			c.record(RosterEvent{UserID: actorID, Kind: RosterLeft, ActorID: actorID, At: now})
		case !isInitiator:
			return nil, errNoop
		}

		if isInitiator || c.countStatus(ParticipantJoined) == 0 {
			if err := newLifecycle(c, now).fire(ctx, TriggerHangup); err != nil {
				return nil, err
			}
			return []Transition{transition(EventEnded, actorID).with("reason", "hangup")}, nil
		}
		return []Transition{transition(EventParticipantLeft, actorID)}, nil
	})
}

// Decline rejects an invitation. When every invitee has declined and nobody joined,
// the call resolves to declined.
func (m *Manager) Decline(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
		}
		if actorID == c.InitiatorID {
			return nil, fmt.Errorf("%w: initiator cannot decline, leave instead", ErrInvalidTransition)
		}
		p, ok := c.participant(actorID)
		if !ok {
			return nil, ErrUnauthorized
		}
		switch p.Status {
		case ParticipantInvited:
		case ParticipantDeclined:
			return nil, errNoop
		case ParticipantRemoved:
			return nil, ErrUnauthorized
		default:
			return nil, fmt.Errorf("%w: participant is %s", ErrInvalidTransition, p.Status)
		}

		c.record(RosterEvent{UserID: actorID, Kind: RosterDeclined, ActorID: actorID, At: now})

		t := transition(EventDeclined, actorID).with("user_id", actorID)
		lc := newLifecycle(c, now)
		if lc.can(ctx, TriggerDeclineAll) {
			if err := lc.fire(ctx, TriggerDeclineAll); err != nil {
				return nil, err
			}
		}
		return []Transition{t}, nil
	})
}

// EndAll lets a moderator end an active call for everyone.
func (m *Manager) EndAll(ctx context.Context, callID, actorID string) (Call, error) {
	c, err := m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if !c.isModerator(actorID) {
			return nil, ErrUnauthorized
		}
		if err := newLifecycle(c, now).fire(ctx, TriggerEndAll); err != nil {
			return nil, err
		}
		return []Transition{transition(EventEnded, actorID).with("reason", "end_all")}, nil
	})
	if err == nil {
		m.recordModeration(ctx, c, actorID, "end_all", "", "")
	}
	return c, err
}
