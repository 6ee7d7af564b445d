package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const (
	DefaultStream    = "inventory:alerts"
	dedupeKeyPrefix  = "inventory:alert:"
	DefaultDedupeTTL = 15 * time.Minute
)

// RedisSink appends alerts to a Redis stream. Repeated alerts for the same
// operation are suppressed for dedupeTTL so a single failing order does not
// flood the channel.
type RedisSink struct {
	client    *redis.Client
	stream    string
	maxLen    int64
	dedupeTTL time.Duration
}

func NewRedisSink(client *redis.Client, stream string, maxLen int64, dedupeTTL time.Duration) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{
		client:    client,
		stream:    stream,
		maxLen:    maxLen,
		dedupeTTL: dedupeTTL,
	}
}

func (r *RedisSink) Publish(ctx context.Context, alert domain.Alert) error {
	deduped := alert.OperationKey != "" && r.dedupeTTL > 0
	if deduped {
		ok, err := r.client.SetNX(ctx, dedupeKey(alert), alert.ID, r.dedupeTTL).Result()
		if err != nil {
			return fmt.Errorf("alert dedupe: %w", err)
		}
		if !ok {
			return nil
		}
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":        alert.ID,
			"severity":  string(alert.Severity),
			"operation": alert.Operation,
			"payload":   string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		err = fmt.Errorf("xadd %s: %w", r.stream, err)
		if deduped {
			// Release the claim so the next attempt is delivered instead of suppressed.
			if delErr := r.client.Del(context.WithoutCancel(ctx), dedupeKey(alert)).Err(); delErr != nil {
				err = errors.Join(err, fmt.Errorf("release alert dedupe: %w", delErr))
			}
		}
		return err
	}
	return nil
}

func dedupeKey(alert domain.Alert) string {
	return dedupeKeyPrefix + alert.Operation + ":" + alert.OperationKey + ":" + string(alert.Severity)
}
