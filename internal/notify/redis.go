package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/pv/precog-panel/internal/config"
)

// RedisSink добавляет оповещения в Redis stream (XADD)
type RedisSink struct {
	client *redis.Client
	stream string
}

// NewRedisSink создаёт клиента и проверяет соединение
func NewRedisSink(ctx context.Context, cfg *config.RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisSink{client: client, stream: cfg.GetStream()}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":        alert.ID,
			"kind":      string(alert.Kind),
			"deviceId":  strconv.FormatInt(alert.DeviceID, 10),
			"issueId":   strconv.FormatInt(alert.IssueID, 10),
			"data":      string(data),
			"timestamp": strconv.FormatInt(alert.CreatedAt.Unix(), 10),
		},
	}).Result()
	return err
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
