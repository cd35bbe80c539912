package calls

import (
	"context"
	"time"
)

// Repository is the persistence contract for call documents.
//
// Concurrency invariant:
// - Update is a compare-and-swap on Version. A mismatch returns ErrConflict and writes nothing.
// - Create refuses a second live call for the same conversation with ErrLiveCallExists.
//
// Implementations return copies; callers may mutate results freely.
type Repository interface {
	Create(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, callID string) (Call, error)
	Update(ctx context.Context, c Call, expectedVersion int64) (Call, error)
	FindLiveByConversation(ctx context.Context, conversationID string) (Call, bool, error)
	Query(ctx context.Context, f Filter) ([]Call, error)
}

// Filter selects calls for listing. Zero values mean "any".
//
// UserID with no UserStatuses matches calls where the user is initiator or on the roster.
// UserID with UserStatuses matches on the user's stored roster status.
// From/To bound CreatedAt as [From, To). Results are newest first.
type Filter struct {
	UserID         string
	UserStatuses   []ParticipantStatus
	Statuses       []Status
	ConversationID string
	From           time.Time
	To             time.Time

	Limit  int
	Offset int
}

func (f Filter) matches(c Call) bool {
	if f.ConversationID != "" && c.ConversationID != f.ConversationID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !c.CreatedAt.Before(f.To) {
		return false
	}
	if f.UserID == "" {
		return true
	}
	p, onRoster := c.participant(f.UserID)
	if len(f.UserStatuses) == 0 {
		return onRoster || c.InitiatorID == f.UserID
	}
	if !onRoster {
		return false
	}
	for _, s := range f.UserStatuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Page is the client-facing pagination input.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
