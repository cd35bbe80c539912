package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/qmuntal/stateless"
)

// Trigger drives the call lifecycle machine.
type Trigger string

const (
	TriggerRing       Trigger = "ring"
	TriggerActivate   Trigger = "activate"
	TriggerHangup     Trigger = "hangup"
	TriggerDeclineAll Trigger = "decline_all"
	TriggerReclaim    Trigger = "reclaim"
	TriggerEndAll     Trigger = "end_all"
)

// statusLive is the abstract superstate of initiated, ringing and active. A call is never stored in it.
const statusLive Status = "live"

// lifecycle binds a stateless machine to one loaded call document.
// The machine reads and writes c.Status directly, so firing a trigger mutates the document
// that will be written back with the CAS update.
type lifecycle struct {
	call *Call
	now  time.Time
	sm   *stateless.StateMachine
}

func newLifecycle(c *Call, now time.Time) *lifecycle {
	l := &lifecycle{call: c, now: now}

	sm := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) { return c.Status, nil },
		func(_ context.Context, s stateless.State) error {
			c.Status = s.(Status)
			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(statusLive).
		Permit(TriggerHangup, StatusEnded)

	sm.Configure(StatusInitiated).
		SubstateOf(statusLive).
		Permit(TriggerRing, StatusRinging).
		Permit(TriggerActivate, StatusActive, l.anyoneJoined).
		Permit(TriggerDeclineAll, StatusDeclined, l.everyoneDeclined).
		Permit(TriggerReclaim, StatusEnded, l.nobodyJoined)

	sm.Configure(StatusRinging).
		SubstateOf(statusLive).
		Ignore(TriggerRing).
		Permit(TriggerActivate, StatusActive, l.anyoneJoined).
		Permit(TriggerDeclineAll, StatusDeclined, l.everyoneDeclined).
		Permit(TriggerReclaim, StatusEnded, l.nobodyJoined)

	sm.Configure(StatusActive).
		SubstateOf(statusLive).
		OnEntry(l.onActive).
		Ignore(TriggerRing).
		Ignore(TriggerActivate).
		Permit(TriggerEndAll, StatusEnded)

	sm.Configure(StatusEnded).
		OnEntry(l.onEnded)

	sm.Configure(StatusDeclined).
		OnEntry(l.onDeclined)

	l.sm = sm
	return l
}

// fire applies trigger or returns ErrInvalidTransition when the current status does not permit it.
func (l *lifecycle) fire(ctx context.Context, t Trigger) error {
	ok, err := l.sm.CanFireCtx(ctx, t)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s not allowed while %s", ErrInvalidTransition, t, l.call.Status)
	}
	return l.sm.FireCtx(ctx, t)
}

func (l *lifecycle) can(ctx context.Context, t Trigger) bool {
	ok, err := l.sm.CanFireCtx(ctx, t)
	return err == nil && ok
}

func (l *lifecycle) anyoneJoined(_ context.Context, _ ...any) bool {
	return l.call.countStatus(ParticipantJoined) > 0
}

func (l *lifecycle) nobodyJoined(_ context.Context, _ ...any) bool {
	return l.call.countStatus(ParticipantJoined) == 0
}

// everyoneDeclined holds when nobody joined and no invitee is still ringing.
func (l *lifecycle) everyoneDeclined(_ context.Context, _ ...any) bool {
	c := l.call
	return c.countStatus(ParticipantJoined) == 0 &&
		c.countStatus(ParticipantInvited) == 0 &&
		c.countStatus(ParticipantDeclined) > 0
}

func (l *lifecycle) onActive(_ context.Context, _ ...any) error {
	if l.call.StartedAt == nil {
		at := l.now
		l.call.StartedAt = &at
	}
	return nil
}

// onEnded closes out the roster and any recording, then stamps ended_at and duration.
// A call that never became active ends with duration 0.
func (l *lifecycle) onEnded(_ context.Context, _ ...any) error {
	c := l.call
	for _, uid := range c.usersWithStatus(ParticipantJoined) {
		c.record(RosterEvent{UserID: uid, Kind: RosterLeft, At: l.now})
	}
	l.stopRecording()
	if c.Transfer != nil && c.Transfer.Status == TransferPending {
		c.Transfer.Status = TransferDeclined
		at := l.now
		c.Transfer.RespondedAt = &at
	}

	at := l.now
	c.EndedAt = &at
	d := 0
	if c.StartedAt != nil {
		d = int(at.Sub(*c.StartedAt) / time.Second)
	}
	c.Duration = &d
	return nil
}

func (l *lifecycle) onDeclined(_ context.Context, _ ...any) error {
	at := l.now
	l.call.EndedAt = &at
	return nil
}

func (l *lifecycle) stopRecording() {
	r := l.call.Recording
	if r == nil || !r.IsRecording {
		return
	}
	at := l.now
	r.IsRecording = false
	r.StoppedAt = &at
	r.Duration = int(at.Sub(r.StartedAt) / time.Second)
}
