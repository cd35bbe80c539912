package calls

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeDirectory struct {
	mu      sync.Mutex
	members map[string][]string
	err     error
}

func newFakeDirectory() *fakeDirectory { return &fakeDirectory{members: map[string][]string{}} }

func (d *fakeDirectory) add(conv string, users ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[conv] = append(d.members[conv], users...)
}

func (d *fakeDirectory) IsConversationParticipant(_ context.Context, userID, conv string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	for _, u := range d.members[conv] {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) ConversationMembers(_ context.Context, conv string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := append([]string(nil), d.members[conv]...)
	sort.Strings(out)
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Transition
}

func (n *recordingNotifier) Notify(_ context.Context, t Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, t)
}

func (n *recordingNotifier) events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, 0, len(n.got))
	for _, t := range n.got {
		out = append(out, t.Event)
	}
	return out
}

func (n *recordingNotifier) last() Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) == 0 {
		return Transition{}
	}
	return n.got[len(n.got)-1]
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (a *recordingAudit) LogModeration(_ context.Context, _, _, actorID, action, targetID, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action+":"+actorID+">"+targetID)
	return a.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	m        *Manager
	repo     *MemoryRepo
	dir      *fakeDirectory
	notifier *recordingNotifier
	audit    *recordingAudit
	clock    *testClock
}

// newHarness builds a manager over conversation "conv" with members x, y, z.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:     NewMemoryRepo(),
		dir:      newFakeDirectory(),
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
		clock:    &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.dir.add("conv", "x", "y", "z")
	h.m = NewManager(Deps{Repo: h.repo, Directory: h.dir, Notifier: h.notifier, Audit: h.audit}, 0)
	h.m.clock = h.clock.Now

	seq := 0
	h.m.newID = func() string {
		seq++
		return fmt.Sprintf("call-%d", seq)
	}
	return h
}

func (h *harness) initiate(t *testing.T, actor string, participants ...string) Call {
	t.Helper()
	res, err := h.m.Initiate(context.Background(), actor, InitiateRequest{ConversationID: "conv", ParticipantIDs: participants})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected a new call")
	}
	return res.Call
}

// activeCall returns a call where x (initiator, moderator) and y are joined and z is invited.
func (h *harness) activeCall(t *testing.T) Call {
	t.Helper()
	c := h.initiate(t, "x", "y", "z")
	ctx := context.Background()
	if _, err := h.m.Join(ctx, c.CallID, "x"); err != nil {
		t.Fatalf("join x: %v", err)
	}
	c, err := h.m.Join(ctx, c.CallID, "y")
	if err != nil {
		t.Fatalf("join y: %v", err)
	}
	h.notifier.reset()
	return c
}

func statusOf(c Call, userID string) ParticipantStatus {
	s, _ := c.StatusFor(userID)
	return s
}

// conflictingRepo fails the next n updates with ErrConflict after applying hook.
type conflictingRepo struct {
	*MemoryRepo
	mu       sync.Mutex
	failures int
	hook     func()
}

func (r *conflictingRepo) Update(ctx context.Context, c Call, expectedVersion int64) (Call, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		hook := r.hook
		r.mu.Unlock()
		if hook != nil {
			hook()
		}
		return Call{}, ErrConflict
	}
	r.mu.Unlock()
	return r.MemoryRepo.Update(ctx, c, expectedVersion)
}

var errDirectoryDown = errors.New("directory down")
