package dispatcher

import (
	"context"

	"github.com/garyjia/toolcrib/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registration. ListHandlers leaves Handler nil.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// SubscribeAll registers handler under name for every known event type
func SubscribeAll(d Dispatcher, name string, handler Handler) {
	for _, typ := range event.Types() {
		d.SubscribeNamed(typ, name, handler)
	}
}
