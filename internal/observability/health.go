package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// HealthCheck probes one dependency (store, cache, feed).
type HealthCheck func(ctx context.Context) ComponentHealth

// ComponentHealth is the health report for a single component.
type ComponentHealth struct {
	Name      string          `json:"name"`
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
}

// SystemHealth is the aggregate health of the service.
type SystemHealth struct {
	Status     ComponentStatus   `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"ts"`
	UptimeSec  int64             `json:"uptime_sec"`
}

// Health aggregates registered checks. The worst component status wins.
type Health struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	timeout   time.Duration
	startTime time.Time
}

// NewHealth creates an aggregator; each check gets at most timeout.
func NewHealth(timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Health{
		checks:    make(map[string]HealthCheck),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// Register adds a named health check.
func (h *Health) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every check concurrently and returns the aggregate.
func (h *Health) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make([]HealthCheck, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			start := time.Now()
			res := checks[i](cctx)
			res.Name = names[i]
			res.LatencyMS = time.Since(start).Milliseconds()
			if res.Status == "" {
				res.Status = StatusHealthy
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	worst := StatusHealthy
	for _, r := range results {
		if statusSeverity(r.Status) > statusSeverity(worst) {
			worst = r.Status
		}
	}
	return SystemHealth{
		Status:     worst,
		Components: results,
		Timestamp:  time.Now().UTC(),
		UptimeSec:  int64(time.Since(h.startTime).Seconds()),
	}
}

// PingCheck adapts a ping function: an error marks the component unhealthy.
func PingCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

func statusSeverity(s ComponentStatus) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return -1
	}
}
