package health

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// Checker is a dependency that can report its health
type Checker interface {
	Health() error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func() error

func (f CheckerFunc) Health() error { return f() }

// HealthStatus represents liveness
type HealthStatus struct {
	OK        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Registry tracks startup state and dependency checks
type Registry struct {
	mu        sync.RWMutex
	checks    map[string]Checker
	ready     bool
	startTime time.Time
}

// NewRegistry creates new health registry
func NewRegistry() *Registry {
	return &Registry{
		checks:    make(map[string]Checker),
		startTime: time.Now(),
	}
}

// Register adds a named dependency check
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = c
}

// SetReady marks the service as ready
func (r *Registry) SetReady(ready bool) {
	r.mu.Lock()
	r.ready = ready
	r.mu.Unlock()

	if ready {
		logger.Info("service marked as READY")
	} else {
		logger.Warn("service marked as NOT READY")
	}
}

// Liveness reports that the process is alive, regardless of dependencies
func (r *Registry) Liveness() HealthStatus {
	return HealthStatus{
		OK:        true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(r.startTime).Round(time.Second).String(),
	}
}

// Readiness runs every check. Ready requires startup complete and all checks healthy.
func (r *Registry) Readiness() ReadinessStatus {
	r.mu.RLock()
	ready := r.ready
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	checks := make(map[string]Checker, len(r.checks))
	for name, c := range r.checks {
		checks[name] = c
	}
	r.mu.RUnlock()

	sort.Strings(names)
	results := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		if err := checks[name].Health(); err != nil {
			results[name] = "unhealthy: " + err.Error()
			allHealthy = false
			logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "healthy"
	}

	return ReadinessStatus{
		Ready:     ready && allHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
	}
}
