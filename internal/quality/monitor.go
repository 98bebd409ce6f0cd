package quality

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Feed Quality Monitor — lag and staleness per snapshot source and chain
// Lag is wall clock minus the snapshot's observed_at stamp.
// ---------------------------------------------------------------------------

// Alert levels.
const (
	LevelWarn     = "warn"
	LevelCritical = "critical"
)

// FeedStats tracks delivery statistics for one source/chain pair.
type FeedStats struct {
	Source        string    `json:"source"`
	Chain         string    `json:"chain"`
	LastEventTime time.Time `json:"last_event_time"`
	EventCount    int64     `json:"event_count"`
	Untimed       int64     `json:"untimed"` // snapshots without observed_at
	LastLagMs     float64   `json:"last_lag_ms"`
	MaxLagMs      float64   `json:"max_lag_ms"`
	AvgLagMs      float64   `json:"avg_lag_ms"`
	StartTime     time.Time `json:"start_time"`

	totalLagMs float64
	timed      int64
}

// Alert is a feed quality warning.
type Alert struct {
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Chain     string    `json:"chain"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Monitor tracks the freshness of snapshot feeds. Safe for concurrent use.
type Monitor struct {
	mu           sync.RWMutex
	stats        map[string]*FeedStats
	alertCh      chan Alert
	lagThreshold time.Duration
	staleTimeout time.Duration
	now          func() time.Time
}

// NewMonitor creates a monitor. Lag above lagThreshold raises a warning;
// a feed silent for staleTimeout is critical.
func NewMonitor(lagThreshold, staleTimeout time.Duration) *Monitor {
	if lagThreshold <= 0 {
		lagThreshold = 30 * time.Second
	}
	if staleTimeout <= 0 {
		staleTimeout = 2 * time.Minute
	}
	return &Monitor{
		stats:        make(map[string]*FeedStats),
		alertCh:      make(chan Alert, 100),
		lagThreshold: lagThreshold,
		staleTimeout: staleTimeout,
		now:          time.Now,
	}
}

func feedKey(source, chain string) string {
	return source + "." + chain
}

// Record registers a snapshot delivered by source.
func (m *Monitor) Record(source string, s snapshot.Snapshot) {
	now := m.now()
	chain := s.Chain()
	key := feedKey(source, chain)

	m.mu.Lock()
	st, ok := m.stats[key]
	if !ok {
		st = &FeedStats{Source: source, Chain: chain, StartTime: now}
		m.stats[key] = st
	}
	st.EventCount++
	st.LastEventTime = now

	observed := observedAt(s)
	if observed.IsZero() {
		st.Untimed++
		m.mu.Unlock()
		return
	}

	lagMs := math.Max(0, float64(now.Sub(observed))/float64(time.Millisecond))
	st.timed++
	st.totalLagMs += lagMs
	st.LastLagMs = lagMs
	st.AvgLagMs = st.totalLagMs / float64(st.timed)
	if lagMs > st.MaxLagMs {
		st.MaxLagMs = lagMs
	}
	m.mu.Unlock()

	if lagMs > float64(m.lagThreshold.Milliseconds()) {
		m.emitAlert(Alert{
			Level:     LevelWarn,
			Source:    source,
			Chain:     chain,
			Message:   fmt.Sprintf("feed lag %.0fms exceeds threshold %dms", lagMs, m.lagThreshold.Milliseconds()),
			Timestamp: now,
		})
	}
}

// observedAt reads observed_at as unix seconds or milliseconds.
func observedAt(s snapshot.Snapshot) time.Time {
	ts := s.NonNegFloat(snapshot.FieldObservedAt)
	if ts == 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(int64(ts))
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Tap records every snapshot read from in and forwards it unchanged. The
// returned channel closes when in closes or ctx ends.
func (m *Monitor) Tap(ctx context.Context, source string, in <-chan snapshot.Snapshot) <-chan snapshot.Snapshot {
	out := make(chan snapshot.Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					return
				}
				m.Record(source, s)
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Alerts returns the alert channel.
func (m *Monitor) Alerts() <-chan Alert {
	return m.alertCh
}

// Snapshot returns a copy of the per-feed stats keyed by "source.chain".
func (m *Monitor) Snapshot() map[string]FeedStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]FeedStats, len(m.stats))
	for k, v := range m.stats {
		out[k] = *v
	}
	return out
}

// Start checks for stale feeds until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	interval := m.staleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, a := range m.checkStaleFeeds() {
				m.emitAlert(a)
			}
		}
	}
}

func (m *Monitor) checkStaleFeeds() []Alert {
	now := m.now()
	var alerts []Alert

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.stats {
		if silent := now.Sub(st.LastEventTime); silent > m.staleTimeout {
			alerts = append(alerts, Alert{
				Level:     LevelCritical,
				Source:    st.Source,
				Chain:     st.Chain,
				Message:   fmt.Sprintf("no snapshots for %s", silent.Truncate(time.Second)),
				Timestamp: now,
			})
		}
	}
	return alerts
}

// HealthCheck reports unhealthy when any feed is stale and degraded when a
// feed's average lag exceeds the threshold.
func (m *Monitor) HealthCheck() observability.HealthCheck {
	return func(context.Context) observability.ComponentHealth {
		if stale := m.checkStaleFeeds(); len(stale) > 0 {
			return observability.ComponentHealth{
				Status:  observability.StatusUnhealthy,
				Message: fmt.Sprintf("%s/%s: %s", stale[0].Source, stale[0].Chain, stale[0].Message),
			}
		}

		threshold := float64(m.lagThreshold.Milliseconds())
		for _, st := range m.Snapshot() {
			if st.timed > 0 && st.AvgLagMs > threshold {
				return observability.ComponentHealth{
					Status:  observability.StatusDegraded,
					Message: fmt.Sprintf("%s/%s: average lag %.0fms", st.Source, st.Chain, st.AvgLagMs),
				}
			}
		}
		return observability.ComponentHealth{Status: observability.StatusHealthy}
	}
}

// emitAlert sends an alert to the channel without blocking.
// If the channel is full, the alert is dropped and a warning is logged.
func (m *Monitor) emitAlert(alert Alert) {
	select {
	case m.alertCh <- alert:
	default:
		log.Warn().
			Str("source", alert.Source).
			Str("chain", alert.Chain).
			Str("level", alert.Level).
			Str("message", alert.Message).
			Msg("quality: alert channel full, dropping alert")
	}
}
