// Package telemetry optionally publishes protocol engine lifecycle
// events (state transitions, reported errors) to Redis pub/sub, adapted
// from the bluetooth service's Redis client. It is entirely optional: a
// nil *Publisher is safe to use and simply drops every event.
package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alexeynaumov/rbisync/protocol"
)

// Publisher publishes engine lifecycle events to a Redis channel. The
// zero value is not usable; construct with NewPublisher.
type Publisher struct {
	client  *redis.Client
	ctx     context.Context
	channel string
}

// NewPublisher connects to the Redis instance at addr and returns a
// Publisher that writes to channel.
func NewPublisher(addr, password string, db int, channel string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetry: connect to redis: %w", err)
	}
	return &Publisher{client: client, ctx: ctx, channel: channel}, nil
}

// PublishState publishes a state transition. Safe to call on a nil
// Publisher.
func (p *Publisher) PublishState(from, to string) {
	if p == nil {
		return
	}
	p.client.Publish(p.ctx, p.channel, fmt.Sprintf("state:%s:%s", from, to))
}

// PublishError publishes a reported engine error. Safe to call on a nil
// Publisher.
func (p *Publisher) PublishError(err *protocol.Error) {
	if p == nil {
		return
	}
	p.client.Publish(p.ctx, p.channel, fmt.Sprintf("error:%s", err.Code))
}

// Attach wires p's hooks into eng's OnStateChange/OnError callbacks. Each
// of those registrations chains onto whatever callback eng already holds
// (see protocol.Engine.OnRead) rather than replacing it, so Attach can be
// called alongside a façade's own wiring or a metrics.Collector without
// severing either.
func (p *Publisher) Attach(eng *protocol.Engine) {
	if p == nil {
		return
	}
	eng.OnStateChange(func(from, to string) { p.PublishState(from, to) })
	eng.OnError(func(e *protocol.Error) { p.PublishError(e) })
}

// Close releases the underlying Redis connection. Safe to call on a nil
// Publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
