package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier publishes domain events on a Redis channel. Consumers (the
// notification workers that render and deliver messages) live outside this
// service; emission is fire-and-forget.
type Notifier struct {
	c       *redis.Client
	channel string
}

func NewNotifier(addr, pass string, db int, channel string) *Notifier {
	return &Notifier{
		c:       redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		channel: channel,
	}
}

type event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	At   string         `json:"at"`
	Data map[string]any `json:"data"`
}

func (n *Notifier) Emit(ctx context.Context, eventType string, payload map[string]any) error {
	b, err := json.Marshal(event{
		ID:   uuid.NewString(),
		Type: eventType,
		At:   time.Now().UTC().Format(time.RFC3339),
		Data: payload,
	})
	if err != nil {
		return err
	}
	return n.c.Publish(ctx, n.channel, b).Err()
}
