package listeners

import (
	"context"

	"go.uber.org/zap"

	"safety-inspection/internal/events"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/websocket"
)

// Broadcaster is the slice of the websocket hub the listener needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, messageType string, payload interface{}) error
}

// RealtimeListener mirrors finding events onto the admin websocket feed.
type RealtimeListener struct {
	hub    Broadcaster
	logger *zap.Logger
}

func NewRealtimeListener(hub Broadcaster, logger *zap.Logger) *RealtimeListener {
	return &RealtimeListener{hub: hub, logger: logger}
}

func (l *RealtimeListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.FindingCreatedName, l.handle)
	bus.Subscribe(events.FindingStatusChangedName, l.handle)
}

func (l *RealtimeListener) handle(ctx context.Context, event eventbus.Event) error {
	payload, ok := findingPayload(event)
	if !ok {
		return nil
	}
	return l.hub.Broadcast(ctx, event.Name(), payload)
}

func findingPayload(event eventbus.Event) (websocket.FindingPayload, bool) {
	switch e := event.(type) {
	case events.FindingCreatedEvent:
		f := e.Finding
		return websocket.FindingPayload{
			FindingID:   f.ID.String(),
			ReportID:    f.ReportID,
			Severity:    string(f.Severity),
			Status:      string(f.Status),
			AreaName:    e.AreaName,
			Description: f.Description,
			Actor:       websocket.ActorInfo{ID: e.Reporter.ID.String(), Name: e.Reporter.FullName},
			Links:       websocket.LinkInfo{Primary: "/findings/" + f.ID.String()},
			CreatedAt:   f.ReportedAt,
		}, true
	case events.FindingStatusChangedEvent:
		f := e.Finding
		return websocket.FindingPayload{
			FindingID:   f.ID.String(),
			ReportID:    f.ReportID,
			Severity:    string(f.Severity),
			Status:      string(e.NewStatus),
			OldStatus:   string(e.OldStatus),
			Description: f.Description,
			Actor:       websocket.ActorInfo{ID: e.ActorID.String(), Name: e.ActorName},
			Notes:       e.Notes,
			Links:       websocket.LinkInfo{Primary: "/findings/" + f.ID.String()},
			ClosedAt:    f.ClosedAt,
			CreatedAt:   e.ChangedAt,
		}, true
	}
	return websocket.FindingPayload{}, false
}
