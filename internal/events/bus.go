package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Bus delivers events synchronously to in-process subscribers, in subscription order.
// A failing handler is logged and does not stop delivery to the rest.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
	logger   zerolog.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "event_bus").Logger()}
}

func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.fn(ctx, e); err != nil {
			b.logger.Error().
				Err(err).
				Str("subscriber", h.name).
				Str("event_type", string(e.Type)).
				Str("event_id", e.ID.String()).
				Msg("event handler failed")
		}
	}
	return nil
}
