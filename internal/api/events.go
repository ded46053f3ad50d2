package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/scenecast/internal/events"
)

// sseEventTypes maps SSE event names to payload types.
var sseEventTypes = map[string]any{
	"scene-created":         events.SceneCreatedEvent{},
	"scene-renamed":         events.SceneRenamedEvent{},
	"scene-deleted":         events.SceneDeletedEvent{},
	"active-scene-changed":  events.ActiveSceneChangedEvent{},
	"source-added":          events.SourceAddedEvent{},
	"source-updated":        events.SourceUpdatedEvent{},
	"source-removed":        events.SourceRemovedEvent{},
	"device-binding":        events.DeviceBindingEvent{},
	"device-discovery":      events.DeviceDiscoveryEvent{},
	"session-state-changed": events.SessionStateChangedEvent{},
	"session-stats":         events.SessionStatsEvent{},
}

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of scene, device and session events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SceneCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SceneRenamedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SceneDeletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ActiveSceneChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourceAddedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourceUpdatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourceRemovedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceBindingEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Clients get the current session state on connect.
		if s.options.Session != nil {
			st := s.options.Session.Stats()
			if err := send.Data(events.SessionStatsEvent{
				Status:          string(st.Status),
				UptimeSeconds:   st.UptimeSeconds,
				BitrateKbps:     st.BitrateKbps,
				FPS:             st.FPS,
				DroppedFrames:   st.DroppedFrames,
				CPUUsagePercent: st.CPUUsagePercent,
			}); err != nil {
				return
			}
		}

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
