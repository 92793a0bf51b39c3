package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/providers"
	redisclient "github.com/agrilink/marketplace-backend/internal/infrastructure/clients/redis"
)

// RedisNotifier delivers notification events over Redis Pub/Sub. Downstream
// delivery workers (in-app, email, push) subscribe to the per-recipient
// channel; this adapter owns only the hand-off.
type RedisNotifier struct {
	client *redisclient.Client
}

// NewRedisNotifier creates a new Redis-backed notifier
func NewRedisNotifier(client *redisclient.Client) providers.Notifier {
	return &RedisNotifier{client: client}
}

// Notify publishes the event to the recipient's notification channel.
func (n *RedisNotifier) Notify(ctx context.Context, event *entities.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := ChannelFor(event.RecipientID)
	if err := n.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Msg("published notification event")
	return nil
}

// ChannelFor returns the Pub/Sub channel name for a recipient.
func ChannelFor(recipientID string) string {
	return "notifications:" + recipientID
}
