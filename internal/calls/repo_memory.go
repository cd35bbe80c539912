package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and single-node development.
// It enforces the same CAS and one-live-call-per-conversation rules as PostgresRepo.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
	order []string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string]Call{}} }

func (r *MemoryRepo) Create(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calls[c.CallID]; exists {
		return Call{}, ErrConflict
	}
	if c.Status.IsLive() {
		for _, id := range r.order {
			other := r.calls[id]
			if other.ConversationID == c.ConversationID && other.Status.IsLive() {
				return Call{}, ErrLiveCallExists
			}
		}
	}
	c.Version = 1
	c.UpdatedAt = c.CreatedAt
	r.calls[c.CallID] = c.Clone()
	r.order = append(r.order, c.CallID)
	return c.Clone(), nil
}

func (r *MemoryRepo) Get(ctx context.Context, callID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call, expectedVersion int64) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.calls[c.CallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return Call{}, ErrConflict
	}
	c.Version = expectedVersion + 1
	r.calls[c.CallID] = c.Clone()
	return c.Clone(), nil
}

func (r *MemoryRepo) FindLiveByConversation(ctx context.Context, conversationID string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		c := r.calls[id]
		if c.ConversationID == conversationID && c.Status.IsLive() {
			return c.Clone(), true, nil
		}
	}
	return Call{}, false, nil
}

func (r *MemoryRepo) Query(ctx context.Context, f Filter) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, 0)
	for _, id := range r.order {
		c := r.calls[id]
		if f.matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Call{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
