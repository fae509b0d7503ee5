package services

import (
	"context"

	"github.com/ghprograms/programs-backend/internal/clients/redis"
	"github.com/ghprograms/programs-backend/internal/sse"
)

// SSEEmitter decouples notifiers from the delivery path. Single-instance
// deployments emit straight into the local hub; multi-instance deployments
// publish to the Redis bus so every instance fans out to its own clients.
type SSEEmitter interface {
	Emit(ctx context.Context, msg sse.SSEMessage)
}

type HubEmitter struct{ Hub *sse.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	e.Hub.Broadcast(msg)
}

type RedisEmitter struct{ Bus *redis.SSEBus }

func (e *RedisEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	_ = e.Bus.Publish(ctx, msg)
}
