package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cookaing/campaign-engine/internal/pkg/logger"
)

// DefaultDedupTTL bounds how long a processed webhook event is remembered.
const DefaultDedupTTL = 24 * time.Hour

// EventDeduper suppresses duplicate webhook deliveries using redis SETNX.
// Providers redeliver webhooks on timeouts, so the same event can arrive
// more than once within a short window.
type EventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDeduper creates a deduper over the given redis client. A zero or
// negative ttl falls back to DefaultDedupTTL.
func NewEventDeduper(client *redis.Client, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &EventDeduper{client: client, ttl: ttl}
}

// Seen reports whether an event with this identity was already processed,
// atomically claiming it if not. When redis is unavailable it fails open:
// the event is treated as unseen, trading a possible duplicate row for
// never dropping an event.
func (d *EventDeduper) Seen(ctx context.Context, messageID, eventType string) bool {
	if d == nil || d.client == nil {
		return false
	}

	key := dedupKey(messageID, eventType)
	claimed, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		logger.Warn("event dedup check failed, processing anyway", "error", err.Error())
		return false
	}
	return !claimed
}

// Forget releases a claimed event identity. Callers that claim a key and
// then fail to persist the event must release it, otherwise the provider's
// retry of the same event would be dropped as a duplicate.
func (d *EventDeduper) Forget(ctx context.Context, messageID, eventType string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Del(ctx, dedupKey(messageID, eventType)).Err(); err != nil {
		logger.Warn("event dedup release failed", "error", err.Error())
	}
}

func dedupKey(messageID, eventType string) string {
	return fmt.Sprintf("dedup:event:%s:%s", messageID, eventType)
}
