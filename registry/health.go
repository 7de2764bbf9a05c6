package registry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/metrics"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/types"
)

// HealthChecker polls a health source and reports aliveness.
type HealthChecker interface {
	Check(ctx context.Context, m types.ModuleDescriptor) bool
}

// HTTPHealthChecker probes an external module's healthcheck_url.
type HTTPHealthChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPHealthChecker creates a checker with a sane default timeout.
func NewHTTPHealthChecker() *HTTPHealthChecker {
	return &HTTPHealthChecker{Client: http.DefaultClient, Timeout: 5 * time.Second}
}

// Check implements HealthChecker for external modules.
func (h *HTTPHealthChecker) Check(ctx context.Context, m types.ModuleDescriptor) bool {
	if m.HealthcheckURL == "" {
		return false
	}
	reqCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.HealthcheckURL, nil)
	if err != nil {
		return false
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// QueueHeartbeatChecker derives internal-module health from the queue
// plane's heartbeat key, the "lightweight ping on the queue plane" from §4.4.
type QueueHeartbeatChecker struct {
	Plane queue.Plane
}

// Check implements HealthChecker for internal modules.
func (q *QueueHeartbeatChecker) Check(ctx context.Context, m types.ModuleDescriptor) bool {
	if m.ContainerState != types.ContainerRunning {
		return false
	}
	alive, err := q.Plane.LastHeartbeat(ctx, m.ID)
	if err != nil {
		return false
	}
	return alive
}

// Prober polls every registered module's health checker at a fixed
// cadence. Two consecutive failures flip healthy=false; any success
// restores it immediately, per §4.4.
type Prober struct {
	registry *Registry
	external HealthChecker
	internal HealthChecker
	period   time.Duration
	logger   *log.Logger

	// Metrics is optional; Collector's Inc methods are nil-receiver safe.
	Metrics *metrics.Collector

	mu       sync.Mutex
	failures map[string]int
}

// NewProber creates a Prober polling at period.
func NewProber(registry *Registry, external, internal HealthChecker, period time.Duration, logger *log.Logger) *Prober {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Prober{
		registry: registry,
		external: external,
		internal: internal,
		period:   period,
		logger:   logger,
		failures: make(map[string]int),
	}
}

// Run polls until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Prober) probeAll(ctx context.Context) {
	modules, err := p.registry.List(ctx)
	if err != nil {
		p.logger.Error("health probe: list modules failed", map[string]any{"error": err.Error()})
		return
	}
	for _, m := range modules {
		p.probeOne(ctx, m)
	}
}

func (p *Prober) probeOne(ctx context.Context, m types.ModuleDescriptor) {
	var checker HealthChecker
	switch m.Kind {
	case types.ModuleKindExternal:
		checker = p.external
	case types.ModuleKindInternal:
		checker = p.internal
	default:
		return
	}
	if checker == nil {
		return
	}

	alive := checker.Check(ctx, m)

	p.mu.Lock()
	if alive {
		p.failures[m.ID] = 0
	} else {
		p.failures[m.ID]++
	}
	count := p.failures[m.ID]
	p.mu.Unlock()

	switch {
	case alive && !m.Healthy:
		if err := p.registry.SetHealthy(ctx, m.ID, true); err != nil {
			p.logger.Error("health probe: mark healthy failed", map[string]any{"module_id": m.ID, "error": err.Error()})
		}
		p.Metrics.IncModuleHealthFlip(true)
	case !alive && count >= 2 && m.Healthy:
		if err := p.registry.SetHealthy(ctx, m.ID, false); err != nil {
			p.logger.Error("health probe: mark unhealthy failed", map[string]any{"module_id": m.ID, "error": err.Error()})
		}
		p.Metrics.IncModuleHealthFlip(false)
	}
}
