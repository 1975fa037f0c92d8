package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRoleEventsChannel is the pub/sub channel carrying changed emails.
const DefaultRoleEventsChannel = "role-changes"

// RoleEvents implements ports.RoleEvents on Redis pub/sub. Each message
// payload is the email whose role changed.
type RoleEvents struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// RoleEventsOptions configures RoleEvents.
type RoleEventsOptions struct {
	Channel string
	Logger  *slog.Logger
}

// NewRoleEvents creates a RoleEvents bound to one channel.
func NewRoleEvents(client redis.UniversalClient, opts RoleEventsOptions) *RoleEvents {
	ch := opts.Channel
	if ch == "" {
		ch = DefaultRoleEventsChannel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleEvents{client: client, channel: ch, logger: logger.With("component", "role_events", "channel", ch)}
}

// Publish announces that email's role changed.
func (e *RoleEvents) Publish(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if err := e.client.Publish(ctx, e.channel, email).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe invokes fn for every email published on the channel until ctx
// is done. It returns nil on cancellation.
func (e *RoleEvents) Subscribe(ctx context.Context, fn func(email string)) error {
	sub := e.client.Subscribe(ctx, e.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			e.logger.Debug("close subscription", "error", err)
		}
	}()

	// Wait for the subscription confirmation so publishes after this point are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}
	e.logger.Info("subscribed to role changes")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if email := strings.TrimSpace(msg.Payload); email != "" {
				fn(email)
			}
		}
	}
}
