package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "calls:user:"

func userChannel(userID string) string { return userChannelPrefix + userID }

// wireMessage is what travels over redis. The op and payload are kept verbatim
// so every node builds the same envelope.
type wireMessage struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// RedisBus implements notify.Bus across nodes: a publish reaches the user's
// connections on whichever node holds them.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus { return &RedisBus{rdb: rdb} }

func (b *RedisBus) Publish(ctx context.Context, userID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	raw, err := json.Marshal(wireMessage{Op: event, Data: data})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, userChannel(userID), raw).Err()
}

// Subscriber feeds redis user channels into the local hub.
type Subscriber struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger

	// newBackOff is swappable in tests.
	newBackOff func() backoff.BackOff
}

func NewSubscriber(rdb *redis.Client, hub *Hub, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{
		rdb: rdb,
		hub: hub,
		log: log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run subscribes until ctx is done, resubscribing with backoff after failures.
func (s *Subscriber) Run(ctx context.Context) error {
	op := func() error {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("redis subscriber disconnected", "err", err, "retry_in", wait.String())
	}
	err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Subscriber) listen(ctx context.Context) error {
	ps := s.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	defer ps.Close()

	// Wait for the subscription confirmation so errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	s.log.Info("redis subscriber listening", "pattern", userChannelPrefix+"*")

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		s.dispatch(msg.Channel, msg.Payload)
	}
}

func (s *Subscriber) dispatch(channel, payload string) {
	userID := strings.TrimPrefix(channel, userChannelPrefix)
	if userID == "" || userID == channel {
		return
	}
	var m wireMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		s.log.Warn("redis subscriber bad message", "channel", channel, "err", err)
		return
	}
	s.hub.Deliver(userID, m.Op, m.Data)
}
