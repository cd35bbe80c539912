package calls

import (
	"context"
	"fmt"
	"time"
)

// RequestTransfer asks targetID to take over actorID's place in an active call.
// Only one transfer may be pending at a time.
func (m *Manager) RequestTransfer(ctx context.Context, callID, actorID, targetID string) (Call, error) {
	if targetID == "" || targetID == actorID {
		return Call{}, fmt.Errorf("%w: transfer target must be another user", ErrInvalidArgument)
	}
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Status != StatusActive {
			return nil, fmt.Errorf("%w: transfer requires an active call, call is %s", ErrInvalidTransition, c.Status)
		}
		if p, ok := c.participant(actorID); !ok || p.Status != ParticipantJoined {
			return nil, ErrUnauthorized
		}
		if c.Transfer != nil && c.Transfer.Status == TransferPending {
			return nil, fmt.Errorf("%w: a transfer is already pending", ErrInvalidTransition)
		}
		ok, err := m.directory.IsConversationParticipant(ctx, targetID, c.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("%w: membership lookup: %v", ErrUnavailable, err)
		}
		if !ok {
			return nil, ErrTargetNotFound
		}
		if p, ok := c.participant(targetID); ok && p.Status == ParticipantJoined {
			return nil, fmt.Errorf("%w: target already joined", ErrInvalidArgument)
		}

		c.Transfer = &Transfer{
			TransferredBy: actorID,
			TransferredTo: targetID,
			Status:        TransferPending,
			RequestedAt:   now,
		}
		return []Transition{transition(EventTransferRequested, actorID, targetID).with("transferred_to", targetID)}, nil
	})
}

// pendingTransferFor validates that actorID may answer the pending transfer.
func pendingTransferFor(c *Call, actorID string) error {
	if c.Transfer == nil || c.Transfer.Status != TransferPending {
		return fmt.Errorf("%w: no pending transfer", ErrInvalidTransition)
	}
	if c.Transfer.TransferredTo != actorID {
		return ErrUnauthorized
	}
	if c.Status != StatusActive {
		return fmt.Errorf("%w: call is %s", ErrInvalidTransition, c.Status)
	}
	return nil
}

// AcceptTransfer joins the transferee and drops the transferrer.
// If the transferrer was the initiator, the transferee becomes initiator and moderator.
func (m *Manager) AcceptTransfer(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if err := pendingTransferFor(c, actorID); err != nil {
			return nil, err
		}
		from := c.Transfer.TransferredBy

		joined := RosterEvent{UserID: actorID, Kind: RosterJoined, ActorID: actorID, At: now}
		if from == c.InitiatorID || c.isModerator(from) {
			joined.Role = RoleModerator
		}
		c.record(joined)
		if p, ok := c.participant(from); ok && p.Status == ParticipantJoined {
			c.record(RosterEvent{UserID: from, Kind: RosterLeft, ActorID: actorID, At: now})
		}
		if from == c.InitiatorID {
			c.InitiatorID = actorID
			c.InitiatorOnHold = false
		}

		c.Transfer.Status = TransferAccepted
		c.Transfer.RespondedAt = &now
		return []Transition{transition(EventTransferAccepted, actorID, from).with("transferred_by", from)}, nil
	})
}

func (m *Manager) DeclineTransfer(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if err := pendingTransferFor(c, actorID); err != nil {
			return nil, err
		}
		c.Transfer.Status = TransferDeclined
		c.Transfer.RespondedAt = &now
		return []Transition{transition(EventTransferDeclined, actorID, c.Transfer.TransferredBy)}, nil
	})
}
