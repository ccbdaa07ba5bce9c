package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		// Extract common fields from payload if available
		var sourceID, jobID, status string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["source_id"].(string); ok {
				sourceID = id
			}
			if id, ok := payload["job_id"].(string); ok {
				jobID = id
			}
			if s, ok := payload["status"].(string); ok {
				status = s
			}
		}

		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if sourceID != "" {
			logEvent = logEvent.Str("source_id", sourceID)
		}
		if jobID != "" {
			logEvent = logEvent.Str("job_id", jobID)
		}
		if status != "" {
			logEvent = logEvent.Str("status", status)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventSourceCreated,
		interfaces.EventSourceUpdated,
		interfaces.EventSourceDeleted,
		interfaces.EventSyncStarted,
		interfaces.EventSyncCompleted,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
