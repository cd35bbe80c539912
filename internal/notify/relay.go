package notify

import (
	"context"
	"sync"
	"time"

	"telecom-calls/internal/calls"
	"telecom-calls/pkg/logger"
)

// Bus delivers one event to every live connection of one user.
type Bus interface {
	Publish(ctx context.Context, userID, event string, payload any) error
}

// DefaultFanoutTimeout bounds how long one transition may spend publishing.
const DefaultFanoutTimeout = 5 * time.Second

// Relay turns committed call transitions into per-user bus publishes.
//
// Delivery is fire-and-forget: Notify returns immediately, the fan-out runs on its own
// goroutine with a context detached from the request, and bus errors are logged only.
// A committed transition is never rolled back because a publish failed.
type Relay struct {
	bus     Bus
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRelay(bus Bus, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	return &Relay{bus: bus, timeout: timeout}
}

func (r *Relay) Notify(ctx context.Context, t calls.Transition) {
	users := Audience(t)
	if len(users) == 0 {
		return
	}
	payload := Payload(t)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(logger.Detach(ctx), r.timeout)
		defer cancel()
		r.fanout(ctx, t, users, payload)
	}()
}

func (r *Relay) fanout(ctx context.Context, t calls.Transition, users []string, payload map[string]any) {
	log := logger.From(ctx)
	for _, u := range users {
		if err := r.bus.Publish(ctx, u, string(t.Event), payload); err != nil {
			log.Warn("notify publish failed",
				"call_id", t.Call.CallID,
				"event", string(t.Event),
				"user_id", u,
				"err", err,
			)
		}
	}
}

// Close stops accepting transitions and waits for in-flight fan-outs.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until every fan-out started so far has finished.
func (r *Relay) Wait() { r.wg.Wait() }
