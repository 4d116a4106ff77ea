package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultQueueKey    = "tournament-engine:generation"
	defaultPollTimeout = 2 * time.Second
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

// RedisQueue shares generation tasks between nodes. Producers LPUSH, workers
// BRPOP, so tasks are consumed in FIFO order.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewRedisQueue connects and pings before returning.
func NewRedisQueue(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  defaultPollTimeout + 3*time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))
	return NewRedisQueueWithClient(client, cfg.QueueKey, logger), nil
}

func NewRedisQueueWithClient(client *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key, pollTimeout: defaultPollTimeout, logger: logger}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task models.GenerationTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode generation task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push generation task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (models.GenerationTask, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.GenerationTask{}, ErrNoTask
	}
	if err != nil {
		if ctx.Err() != nil {
			return models.GenerationTask{}, ctx.Err()
		}
		return models.GenerationTask{}, fmt.Errorf("failed to pop generation task: %w", err)
	}
	// BRPOP answers with [key, value]
	if len(res) != 2 {
		return models.GenerationTask{}, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}

	var task models.GenerationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		q.logger.Error("dropping malformed generation task", slog.String("payload", res[1]), slog.Any("error", err))
		return models.GenerationTask{}, ErrNoTask
	}
	return task, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	q.logger.Info("closing Redis connection")
	return q.client.Close()
}
