package observability

import (
	"context"
	"time"
)

// Publisher sends a JSON event to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes a websocket lifecycle or room event.
type WSEvent struct {
	Kind       string `json:"kind"`
	RoomID     int64  `json:"room_id,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// WSIdentity identifies the peer of a websocket connection.
type WSIdentity struct {
	UserID   int64  `json:"user_id"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

// WSMeta is the per-connection context carried by every websocket event.
type WSMeta struct {
	ConnID      string
	Identity    WSIdentity
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

// PublishWSEvent counts the event and publishes it under ws_events.<kind>.
func PublishWSEvent(ctx context.Context, kind, event string, roomID int64, meta WSMeta, reason string) {
	IncWSEvent(kind, event)
	var duration int64
	if !meta.ConnectedAt.IsZero() {
		duration = time.Since(meta.ConnectedAt).Milliseconds()
	}
	_ = PublishEvent(ctx, "ws_events."+kind, EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": WSEvent{
				Kind:       kind,
				RoomID:     roomID,
				Event:      event,
				ConnID:     meta.ConnID,
				DurationMS: duration,
				Reason:     reason,
			},
			"identity": meta.Identity,
		},
	}, BuildHeaders(meta.RequestID, meta.TraceID))
}
