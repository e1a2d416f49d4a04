package observability

import (
	"sync"
	"time"
)

type RouteSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

type Snapshot struct {
	UptimeSec       int64                    `json:"uptime_sec"`
	TotalRequests   int64                    `json:"total_requests"`
	TotalErrors     int64                    `json:"total_errors"`
	InFlight        int64                    `json:"in_flight"`
	RateLimitWaits  int64                    `json:"rate_limit_waits"`
	RateLimitWaitMs int64                    `json:"rate_limit_wait_ms"`
	Lifecycle       *LifecycleSnapshot       `json:"lifecycle,omitempty"`
	Routes          map[string]RouteSnapshot `json:"routes"`
	Outcomes        map[string]int64         `json:"outcomes"`
}

type routeStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	routes         map[string]*routeStats
	outcomes       map[string]int64
	rateLimitWaits int64
	rateLimitWait  time.Duration
	lifecycle      lifecycleStats
}

type CallSpan struct {
	metrics *Metrics
	route   string
	start   time.Time
}

type lifecycleStats struct {
	shutdownAt time.Time
	inflight   int64
}

type LifecycleSnapshot struct {
	ShutdownAt         time.Time `json:"shutdown_at"`
	InFlightAtShutdown int64     `json:"inflight_at_shutdown"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:    time.Now(),
		routes:   make(map[string]*routeStats),
		outcomes: make(map[string]int64),
	}
}

func (m *Metrics) Start(route string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureRoute(route)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		route:   route,
		start:   time.Now(),
	}
}

func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.route, dur, err != nil)
}

// AddOutcome counts a finished order transaction by its outcome label.
func (m *Metrics) AddOutcome(outcome string) {
	if m == nil || outcome == "" {
		return
	}
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		UptimeSec:       int64(now.Sub(m.start).Seconds()),
		Routes:          make(map[string]RouteSnapshot),
		Outcomes:        make(map[string]int64, len(m.outcomes)),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for route, stats := range m.routes {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Routes[route] = RouteSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	for outcome, count := range m.outcomes {
		snap.Outcomes[outcome] = count
	}

	if !m.lifecycle.shutdownAt.IsZero() {
		snap.Lifecycle = &LifecycleSnapshot{
			ShutdownAt:         m.lifecycle.shutdownAt,
			InFlightAtShutdown: m.lifecycle.inflight,
		}
	}

	return snap
}

func (m *Metrics) ensureRoute(route string) *routeStats {
	stats, ok := m.routes[route]
	if !ok {
		stats = &routeStats{}
		m.routes[route] = stats
	}
	return stats
}

func (m *Metrics) finish(route string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureRoute(route)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}

func (m *Metrics) MarkShutdown(inflight int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lifecycle.shutdownAt = time.Now()
	m.lifecycle.inflight = inflight
	m.mu.Unlock()
}
