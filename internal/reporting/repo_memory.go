package reporting

import (
	"context"
	"sync"
	"time"

	"telecom-calls/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []calls.Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time, userID string) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		if userID != "" && !involves(c, userID) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

func involves(c calls.Call, userID string) bool {
	if c.InitiatorID == userID {
		return true
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// CallsRepo reads from the live call store.
type CallsRepo struct {
	repo calls.Repository
}

func NewCallsRepo(repo calls.Repository) *CallsRepo { return &CallsRepo{repo: repo} }

// statsScanLimit caps how many calls one stats request folds over.
const statsScanLimit = 10000

func (r *CallsRepo) ListCalls(ctx context.Context, from, to time.Time, userID string) ([]calls.Call, error) {
	return r.repo.Query(ctx, calls.Filter{
		UserID: userID,
		From:   from,
		To:     to,
		Limit:  statsScanLimit,
	})
}
