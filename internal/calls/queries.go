package calls

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Get returns a call visible to actorID (initiator or anyone on the roster).
func (m *Manager) Get(ctx context.Context, callID, actorID string) (Call, error) {
	c, err := m.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if !c.isMember(actorID) {
		return Call{}, ErrUnauthorized
	}
	return c.Resolved(), nil
}

// History lists calls actorID initiated or was on, newest first.
func (m *Manager) History(ctx context.Context, actorID string, p Page) ([]Call, error) {
	p = p.normalize()
	rows, err := m.repo.Query(ctx, Filter{UserID: actorID, Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		return nil, err
	}
	return resolveAll(rows), nil
}

// Missed lists calls actorID did not pick up: still invited when the call ended,
// or declined a call that resolved to declined. Acknowledged calls (seen) drop out.
func (m *Manager) Missed(ctx context.Context, actorID string, p Page) ([]Call, error) {
	p = p.normalize()
	window := p.Offset + p.Limit

	ended, err := m.repo.Query(ctx, Filter{
		UserID:       actorID,
		UserStatuses: []ParticipantStatus{ParticipantInvited},
		Statuses:     []Status{StatusEnded},
		Limit:        window,
	})
	if err != nil {
		return nil, err
	}
	declined, err := m.repo.Query(ctx, Filter{
		UserID:       actorID,
		UserStatuses: []ParticipantStatus{ParticipantDeclined},
		Statuses:     []Status{StatusDeclined},
		Limit:        window,
	})
	if err != nil {
		return nil, err
	}

	merged := make([]Call, 0, len(ended)+len(declined))
	for _, c := range append(ended, declined...) {
		if c.IsMissedFor(actorID) {
			merged = append(merged, c)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CreatedAt.After(merged[j].CreatedAt) })
	return resolveAll(pageOf(merged, p)), nil
}

// Waiting lists calls still ringing actorID.
func (m *Manager) Waiting(ctx context.Context, actorID string) ([]Call, error) {
	rows, err := m.repo.Query(ctx, Filter{
		UserID:       actorID,
		UserStatuses: []ParticipantStatus{ParticipantInvited},
		Statuses:     []Status{StatusInitiated, StatusRinging},
		Limit:        maxPageLimit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Call, 0, len(rows))
	for _, c := range rows {
		if c.IsWaitingFor(actorID) {
			out = append(out, c.Resolved())
		}
	}
	return out, nil
}

const maxSeenBatch = 100

// MarkSeen acknowledges missed or declined calls in one batch.
// Unknown ids and calls with nothing to acknowledge are skipped. Returns the ids that changed.
func (m *Manager) MarkSeen(ctx context.Context, actorID string, callIDs []string) ([]string, error) {
	if len(callIDs) == 0 {
		return []string{}, nil
	}
	if len(callIDs) > maxSeenBatch {
		return nil, fmt.Errorf("%w: at most %d call ids per batch", ErrInvalidArgument, maxSeenBatch)
	}

	updated := make([]string, 0, len(callIDs))
	done := map[string]struct{}{}
	for _, id := range callIDs {
		if _, dup := done[id]; dup {
			continue
		}
		done[id] = struct{}{}

		changed := false
		_, err := m.mutate(ctx, id, true, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
			changed = false
			s, ok := c.StatusFor(actorID)
			if !ok || (s != ParticipantMissed && s != ParticipantDeclined) {
				return nil, errNoop
			}
			c.record(RosterEvent{UserID: actorID, Kind: RosterSeen, ActorID: actorID, At: now})
			changed = true
			return nil, nil
		})
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument):
			continue
		case err != nil:
			return updated, err
		}
		if changed {
			updated = append(updated, id)
		}
	}
	return updated, nil
}

func resolveAll(rows []Call) []Call {
	out := make([]Call, 0, len(rows))
	for _, c := range rows {
		out = append(out, c.Resolved())
	}
	return out
}

func pageOf(rows []Call, p Page) []Call {
	if p.Offset >= len(rows) {
		return []Call{}
	}
	rows = rows[p.Offset:]
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows
}
