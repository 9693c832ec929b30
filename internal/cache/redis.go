// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for table action logs.
const DefaultQueueName = "rummy_actions"

// QueueName is the list PublishAction pushes to. Set from configuration at startup.
var QueueName = DefaultQueueName

// ActionRecord holds the minimal info needed by the historian service.
type ActionRecord struct {
	TableID       uuid.UUID              `json:"table_id"`
	RoundNumber   int                    `json:"round_number"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client and pings it.
func ConnectRedis(addr string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// PublishAction serializes the given record to JSON, then pushes it to the Redis queue.
func PublishAction(ctx context.Context, record ActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis client not connected")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, QueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", QueueName, err)
	}
	return nil
}

// PopAction blocks up to timeout for the next record on queue. It returns (nil, nil) on timeout.
func PopAction(ctx context.Context, client *redis.Client, queue string, timeout time.Duration) (*ActionRecord, error) {
	res, err := client.BLPop(ctx, timeout, queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPOP %s: %w", queue, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	var rec ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("decode action record: %w", err)
	}
	return &rec, nil
}
