package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultQueue = "mail:auth-codes"

// Message is the payload an external mailer pops from the outbox list.
type Message struct {
	Email       string    `json:"email"`
	Code        int       `json:"code"`
	RequestedAt time.Time `json:"requestedAt"`
}

// RedisOutbox pushes codes onto a Redis list. Delivery, retries and rate
// limiting are up to the consumer.
type RedisOutbox struct {
	client *redis.Client
	queue  string
	now    func() time.Time
}

func NewRedisOutbox(client *redis.Client, queue string) *RedisOutbox {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisOutbox{client: client, queue: queue, now: time.Now}
}

// Connect opens a Redis client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (o *RedisOutbox) SendCode(ctx context.Context, email string, code int) error {
	payload, err := json.Marshal(Message{
		Email:       email,
		Code:        code,
		RequestedAt: o.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := o.client.LPush(ctx, o.queue, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

// Pending reports how many messages wait in the outbox.
func (o *RedisOutbox) Pending(ctx context.Context) (int64, error) {
	return o.client.LLen(ctx, o.queue).Result()
}
