package history

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/example/naijago/internal/models"
)

// RedisLedger keeps one session's history in a Redis list. LPUSH preserves
// the most-recent-first ordering the in-memory ledger guarantees.
type RedisLedger struct {
	client *redis.Client
	key    string
}

func NewRedisLedger(client *redis.Client, sessionKey string) *RedisLedger {
	return &RedisLedger{client: client, key: "history:" + sessionKey}
}

func (r *RedisLedger) Append(ctx context.Context, e models.HistoryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.key, b).Err()
}

func (r *RedisLedger) List(ctx context.Context) ([]models.HistoryEntry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisLedger) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
