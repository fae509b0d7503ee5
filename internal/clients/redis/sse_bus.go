package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/sse"
	"github.com/ghprograms/programs-backend/internal/utils"
)

// SSEBus fans SSE messages out across instances over a single Redis
// pub/sub channel. Each instance forwards what it receives into its
// local hub, so a client connected anywhere sees every event.
type SSEBus struct {
	client  *goredis.Client
	channel string
	log     *logger.Logger
}

func NewSSEBus(log *logger.Logger) (*SSEBus, error) {
	addr := utils.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required for the SSE bus")
	}
	password := utils.GetEnv("REDIS_PASSWORD", "", nil)
	channel := utils.GetEnv("REDIS_CHANNEL", "sse", log)

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &SSEBus{
		client:  client,
		channel: channel,
		log:     log.With("component", "SSEBus"),
	}, nil
}

func (b *SSEBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sse message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish sse message: %w", err)
	}
	return nil
}

// StartForwarder consumes the bus until ctx is canceled, handing each
// decoded message to onMsg (normally hub.Broadcast).
func (b *SSEBus) StartForwarder(ctx context.Context, onMsg func(sse.SSEMessage)) {
	sub := b.client.Subscribe(ctx, b.channel)
	ch := sub.Channel()

	go func() {
		defer func() {
			if err := sub.Close(); err != nil {
				b.log.Warn("Failed to close redis subscription", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg sse.SSEMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("Dropping malformed SSE bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
}

func (b *SSEBus) Close() error {
	return b.client.Close()
}
