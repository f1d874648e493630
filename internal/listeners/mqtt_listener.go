package listeners

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"safety-inspection/internal/events"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/mqtt"
)

const (
	topicCreated = "findings/created"
	topicStatus  = "findings/status"
)

// MQTTListener publishes finding events for plant signage and alerting.
type MQTTListener struct {
	publisher mqtt.Publisher
	prefix    string
	logger    *zap.Logger
}

func NewMQTTListener(publisher mqtt.Publisher, topicPrefix string, logger *zap.Logger) *MQTTListener {
	return &MQTTListener{publisher: publisher, prefix: topicPrefix, logger: logger}
}

func (l *MQTTListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.FindingCreatedName, l.handle)
	bus.Subscribe(events.FindingStatusChangedName, l.handle)
}

func (l *MQTTListener) handle(ctx context.Context, event eventbus.Event) error {
	payload, ok := findingPayload(event)
	if !ok {
		return nil
	}
	topic := topicStatus
	if event.Name() == events.FindingCreatedName {
		topic = topicCreated
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	topic = mqtt.Topic(l.prefix, topic)
	if err := l.publisher.Publish(ctx, topic, body); err != nil {
		return err
	}
	l.logger.Debug("Finding event published", zap.String("topic", topic), zap.String("report_id", payload.ReportID))
	return nil
}
