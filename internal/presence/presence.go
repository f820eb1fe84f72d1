package presence

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

// Registry tracks which users currently hold a live connection.
type Registry interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// TTL after which an entry expires if the connection stops refreshing it.
const entryTTL = 90 * time.Second

// RedisRegistry stores presence entries in Redis with a TTL so crashed
// processes cannot leave users online forever.
type RedisRegistry struct {
	client *redis.Client
}

// NewRegistry connects to Redis, or returns a noop registry when no address is
// configured.
func NewRegistry(addr, password string, db int) Registry {
	if addr == "" {
		log.Printf("presence disabled, using noop: empty redis addr")
		return noopRegistry{}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) SetOnline(ctx context.Context, userID string) error {
	return r.client.Set(ctx, keyPrefix+userID, "1", entryTTL).Err()
}

func (r *RedisRegistry) SetOffline(ctx context.Context, userID string) error {
	return r.client.Del(ctx, keyPrefix+userID).Err()
}

func (r *RedisRegistry) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, keyPrefix+id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, id := range userIDs {
		result[id] = values[i] != nil
	}
	return result, nil
}

type noopRegistry struct{}

func (noopRegistry) SetOnline(ctx context.Context, userID string) error  { return nil }
func (noopRegistry) SetOffline(ctx context.Context, userID string) error { return nil }
func (noopRegistry) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
