package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	defaultHistoryKey       = "yieldbalancer:sentiment:history"
	defaultHistoryRetention = 7 * 24 * time.Hour
)

// RedisHistory stores readings in a sorted set scored by unix milliseconds, so
// history survives restarts and can be shared between replicas.
type RedisHistory struct {
	client    redis.UniversalClient
	key       string
	retention time.Duration
}

func NewRedisHistory(client redis.UniversalClient, retention time.Duration) *RedisHistory {
	if retention <= 0 {
		retention = defaultHistoryRetention
	}
	return &RedisHistory{client: client, key: defaultHistoryKey, retention: retention}
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func (h *RedisHistory) Append(ctx context.Context, reading types.SentimentReading) error {
	member, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal sentiment reading: %w", err)
	}
	ts := reading.Timestamp.UnixMilli()
	expired := strconv.FormatInt(reading.Timestamp.Add(-h.retention).UnixMilli(), 10)

	pipe := h.client.TxPipeline()
	pipe.ZAdd(ctx, h.key, redis.Z{Score: float64(ts), Member: member})
	pipe.ZRemRangeByScore(ctx, h.key, "-inf", "("+expired)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append sentiment history: %w", err)
	}
	return nil
}

func (h *RedisHistory) Since(ctx context.Context, cutoff time.Time) ([]types.SentimentReading, error) {
	members, err := h.client.ZRangeByScore(ctx, h.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sentiment history: %w", err)
	}

	out := make([]types.SentimentReading, 0, len(members))
	for _, m := range members {
		var r types.SentimentReading
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			return nil, fmt.Errorf("corrupt sentiment history entry: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
