package audit

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/bus"
	"github.com/nexus-trading/scout/internal/scan"
)

// Trail keeps the most recent alerts in memory for querying and, when a
// producer is set, publishes each one to the audit topic.
type Trail struct {
	mu       sync.Mutex
	producer bus.Producer
	entries  []scan.Alert
	maxBuf   int
}

var _ scan.AlertSink = (*Trail)(nil)

// NewTrail creates a trail holding up to maxBuf alerts (oldest discarded
// first). producer may be nil.
func NewTrail(producer bus.Producer, maxBuf int) *Trail {
	if maxBuf < 0 {
		maxBuf = 0
	}
	return &Trail{
		producer: producer,
		entries:  make([]scan.Alert, 0, maxBuf),
		maxBuf:   maxBuf,
	}
}

// Emit records a. Publish failures are logged, never returned.
func (t *Trail) Emit(ctx context.Context, a scan.Alert) error {
	t.mu.Lock()
	if t.maxBuf > 0 {
		if len(t.entries) >= t.maxBuf {
			copy(t.entries, t.entries[1:])
			t.entries[len(t.entries)-1] = a
		} else {
			t.entries = append(t.entries, a)
		}
	}
	t.mu.Unlock()

	if t.producer != nil {
		if err := t.producer.PublishJSON(ctx, bus.TopicAudit, a.RunID, a); err != nil {
			log.Error().Err(err).
				Str("alert_id", a.ID).
				Str("token", a.Token).
				Msg("audit: failed to publish alert")
		}
	}
	return nil
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (t *Trail) Recent(limit int) []scan.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]scan.Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

// Query returns the buffered alerts of one token, oldest first.
func (t *Trail) Query(token string) []scan.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []scan.Alert{}
	for _, a := range t.entries {
		if a.Token == token {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of buffered alerts.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
