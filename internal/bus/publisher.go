package bus

import (
	"context"

	"github.com/nexus-trading/scout/internal/scan"
)

// AlertPublisher publishes scan alerts as JSON, keyed by token so one
// token's alerts stay ordered on a partition.
type AlertPublisher struct {
	producer Producer
	topic    string
}

var _ scan.AlertSink = (*AlertPublisher)(nil)

// NewAlertPublisher publishes to topic (TopicAlerts when empty).
func NewAlertPublisher(p Producer, topic string) *AlertPublisher {
	if topic == "" {
		topic = TopicAlerts
	}
	return &AlertPublisher{producer: p, topic: topic}
}

func (p *AlertPublisher) Emit(ctx context.Context, a scan.Alert) error {
	return p.producer.PublishJSON(ctx, p.topic, a.Token, a)
}
