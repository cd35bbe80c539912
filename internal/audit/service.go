package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByCall(ctx context.Context, callID string) ([]Event, error)
}

// Service records moderation actions taken on calls.
//
// Audit is internal-only and best-effort: callers log failures and move on.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" || e.ActorUserID == "" || !e.Type.Valid() {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogModeration records one moderation action. action is an EventType value.
func (s *Service) LogModeration(ctx context.Context, callID, conversationID, actorID, action, targetID, metadata string) error {
	return s.Append(ctx, Event{
		CallID:         callID,
		ConversationID: conversationID,
		Type:           EventType(action),
		ActorUserID:    actorID,
		TargetUserID:   targetID,
		Metadata:       metadata,
	})
}

// ForCall returns the moderation trail of a call, oldest first.
func (s *Service) ForCall(ctx context.Context, callID string) ([]Event, error) {
	if callID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.ListByCall(ctx, callID)
}
