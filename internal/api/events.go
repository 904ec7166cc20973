package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/ffpipe/internal/events"
)

// registerSSERoutes registers the stream event feed.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Stream state changes, drops, end-of-stream and config reloads as they happen",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"stream-ended":         events.StreamEndedEvent{},
		"frame-dropped":        events.FrameDroppedEvent{},
		"spawn-failed":         events.SpawnFailedEvent{},
		"callback-panicked":    events.CallbackPanickedEvent{},
		"config-reloaded":      events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.eventBus == nil {
			return
		}

		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.ForwardToChannel[events.StreamStateChangedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.StreamEndedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.FrameDroppedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.SpawnFailedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.CallbackPanickedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
