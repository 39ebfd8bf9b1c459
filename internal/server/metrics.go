package server

import (
	"errors"
	"sync"
	"time"
)

// Metrics holds in-process counters for the upload/show workflow.
type Metrics struct {
	mu sync.RWMutex

	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadDurationTotal time.Duration
	parseErrorsTotal    int64
	missingFileTotal    int64
	installErrorsTotal  int64

	servesTotal        int64
	serveBytesTotal    int64
	serveDurationTotal time.Duration
	serveNotFoundTotal int64
	serveErrorsTotal   int64

	routeMissesTotal int64
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successful install.
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError counts a rejected or failed upload by kind.
func (m *Metrics) RecordUploadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case errors.Is(err, ErrMissingFile):
		m.missingFileTotal++
	case errors.Is(err, ErrParse):
		m.parseErrorsTotal++
	default:
		m.installErrorsTotal++
	}
}

// RecordServe records a completed artifact stream.
func (m *Metrics) RecordServe(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servesTotal++
	m.serveBytesTotal += bytes
	m.serveDurationTotal += duration
}

// RecordServeError counts a /show request that did not stream the artifact.
func (m *Metrics) RecordServeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(err, ErrArtifactNotFound) {
		m.serveNotFoundTotal++
		return
	}
	m.serveErrorsTotal++
}

func (m *Metrics) RecordRouteMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeMissesTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		ParseErrorsTotal:    m.parseErrorsTotal,
		MissingFileTotal:    m.missingFileTotal,
		InstallErrorsTotal:  m.installErrorsTotal,
		ServesTotal:         m.servesTotal,
		ServeBytesTotal:     m.serveBytesTotal,
		ServeAvgDurationMs:  avgDuration(m.serveDurationTotal, m.servesTotal),
		ServeNotFoundTotal:  m.serveNotFoundTotal,
		ServeErrorsTotal:    m.serveErrorsTotal,
		RouteMissesTotal:    m.routeMissesTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`
	ParseErrorsTotal    int64   `json:"parse_errors_total"`
	MissingFileTotal    int64   `json:"missing_file_total"`
	InstallErrorsTotal  int64   `json:"install_errors_total"`

	ServesTotal        int64   `json:"serves_total"`
	ServeBytesTotal    int64   `json:"serve_bytes_total"`
	ServeAvgDurationMs float64 `json:"serve_avg_duration_ms"`
	ServeNotFoundTotal int64   `json:"serve_not_found_total"`
	ServeErrorsTotal   int64   `json:"serve_errors_total"`

	RouteMissesTotal int64 `json:"route_misses_total"`
	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
