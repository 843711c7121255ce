package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/protocolsim/idlarena/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. The orchestrator
// publishes round and resolution events on run-scoped channels; the ws hub
// and notifier subscribe with a pattern covering all runs.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a signal to a Pub/Sub channel as a JSON envelope.
func (sb *SignalBus) Publish(ctx context.Context, channel string, sig domain.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel
// of decoded signals plus a stop function. Glob-style patterns use
// PSubscribe. Undecodable payloads are dropped.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan domain.Signal, func(), error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan domain.Signal, 128)
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var sig domain.Signal
				if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
					continue
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(done) }) }
	return out, stop, nil
}

// hasPattern returns true when the Redis channel includes glob-style
// wildcards, in which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
