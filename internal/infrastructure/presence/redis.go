package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

const keyPrefix = "rillcall:presence:"

type presenceRecord struct {
	Username    string `json:"username"`
	ClientID    string `json:"client_id"`
	AnnouncedAt int64  `json:"announced_at"`
}

// RedisDirectory keeps one expiring key per online participant so that
// agents sharing a Redis server see each other.
type RedisDirectory struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

var _ ports.PresenceDirectory = (*RedisDirectory)(nil)

func NewRedisDirectory(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *RedisDirectory {
	return &RedisDirectory{client: client, ttl: ttl, logger: logger}
}

func (d *RedisDirectory) key(p domain.ParticipantID) string {
	return keyPrefix + p.Username + ":" + p.ClientID
}

func (d *RedisDirectory) Announce(ctx context.Context, p domain.ParticipantID) error {
	data, err := json.Marshal(presenceRecord{
		Username:    p.Username,
		ClientID:    p.ClientID,
		AnnouncedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := d.client.Set(ctx, d.key(p), data, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to announce presence: %w", err)
	}
	return nil
}

func (d *RedisDirectory) Withdraw(ctx context.Context, p domain.ParticipantID) error {
	if err := d.client.Del(ctx, d.key(p)).Err(); err != nil {
		return fmt.Errorf("failed to withdraw presence: %w", err)
	}
	return nil
}

func (d *RedisDirectory) List(ctx context.Context) ([]domain.ParticipantID, error) {
	var keys []string
	iter := d.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}
	if len(keys) == 0 {
		return []domain.ParticipantID{}, nil
	}

	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load presence: %w", err)
	}

	online := make([]domain.ParticipantID, 0, len(values))
	for i, v := range values {
		// expired between SCAN and MGET
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec presenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			d.logger.Warnw("Skipping malformed presence record", "key", keys[i], "error", err)
			continue
		}
		if rec.Username == "" {
			continue
		}
		online = append(online, domain.ParticipantID{Username: rec.Username, ClientID: rec.ClientID})
	}
	sortParticipants(online)
	return online, nil
}
