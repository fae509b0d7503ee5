package ssedata

import (
	"context"

	"github.com/ghprograms/programs-backend/internal/sse"
)

type key struct{}

// SSEData buffers messages produced while a request is being handled so
// the emitter can flush them after the surrounding transaction commits.
type SSEData struct {
	Messages []sse.SSEMessage
}

func WithSSEData(ctx context.Context) context.Context {
	data := &SSEData{
		Messages: make([]sse.SSEMessage, 0),
	}
	return context.WithValue(ctx, key{}, data)
}

func GetSSEData(ctx context.Context) *SSEData {
	val := ctx.Value(key{})
	ssd, ok := val.(*SSEData)
	if !ok {
		return nil
	}
	return ssd
}

func (d *SSEData) AppendMessage(msg sse.SSEMessage) {
	d.Messages = append(d.Messages, msg)
}
