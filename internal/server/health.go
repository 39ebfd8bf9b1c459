package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

// SlotDetails describes the current artifact.
type SlotDetails struct {
	Present   bool      `json:"present"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	ModTime   time.Time `json:"mod_time,omitempty"`
}

// HandleHealth reports slot, audit and mirror health. Unhealthy answers 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := s.checkHealth(ctx)

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.build.Version,
		Components: map[string]ComponentHealth{"slot": s.checkSlotHealth()},
	}
	if s.db != nil {
		health.Components["audit"] = s.checkDatabaseHealth(ctx)
	}
	if s.mirror != nil {
		health.Components["mirror"] = s.mirror.Check(ctx)
	}
	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkSlotHealth verifies the slot directory accepts writes and reports the
// artifact, if any.
func (s *Server) checkSlotHealth() ComponentHealth {
	probe, err := os.CreateTemp(s.slot.Dir(), stagingPrefix+"probe-*")
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "slot directory not writable: " + err.Error(),
		}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	details := SlotDetails{}
	info, err := s.slot.Stat()
	switch {
	case err == nil:
		details = SlotDetails{Present: true, SizeBytes: info.Size(), ModTime: info.ModTime().UTC()}
	case !errors.Is(err, ErrArtifactNotFound):
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "cannot stat " + filepath.Base(s.slot.Path()) + ": " + err.Error(),
		}
	}

	return ComponentHealth{Status: ComponentStatusUp, Message: "slot healthy", Details: details}
}

// checkDatabaseHealth pings the audit database.
func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "database ping failed: " + err.Error(),
		}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "database healthy",
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}
}

// Check reports whether the mirror bucket is reachable.
func (m *Mirror) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return ComponentHealth{Status: ComponentStatusDegraded, Message: "minio connection failed: " + err.Error()}
	}
	if !exists {
		return ComponentHealth{Status: ComponentStatusDegraded, Message: "bucket does not exist: " + m.bucket}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "minio healthy",
		LatencyMs: float64(time.Since(start).Milliseconds()),
		Details:   map[string]string{"circuit": m.breaker.State().String()},
	}
}

// determineOverallHealth folds component statuses into one. Audit and mirror
// only ever degrade the service; a broken slot makes it unhealthy.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	overall := HealthStatusHealthy
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			return HealthStatusUnhealthy
		case ComponentStatusDegraded:
			overall = HealthStatusDegraded
		}
	}
	return overall
}
