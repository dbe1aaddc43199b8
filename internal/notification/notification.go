package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindSaltRotated is published after the identifier salt changes. Body
	// carries the new salt fingerprint, never the salt.
	KindSaltRotated = "salt.rotated"
	// KindAliasReserved is published when an alias binding is created.
	KindAliasReserved = "alias.reserved"
	// KindAliasReleased is published when an alias binding is removed.
	KindAliasReleased = "alias.released"

	// DefaultChannel is the Redis pub/sub channel for wallet events.
	DefaultChannel = "simwallet:events:v1"
)

// Message describes an event payload.
type Message struct {
	Kind        string    `json:"kind"`
	Destination string    `json:"destination,omitempty"`
	Body        string    `json:"body,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// RedisNotifier publishes events on a Redis channel so every instance can
// react, e.g. reload the salt after a rotation elsewhere.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher on channel (DefaultChannel when empty).
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes message as JSON.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	if message.At.IsZero() {
		message.At = time.Now().UTC()
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Multi fans a message out to several notifiers and returns the first error.
type Multi []Notifier

// Send delivers to every notifier even when one fails.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Subscribe invokes handle for every message of the given kind published on
// channel until ctx is cancelled. Undecodable payloads are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel, kind string, logger *slog.Logger, handle func(context.Context, Message)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				logger.Warn("discard malformed notification", slog.String("channel", channel), slog.Any("error", err))
				continue
			}
			if msg.Kind != kind {
				continue
			}
			handle(ctx, msg)
		}
	}
}
