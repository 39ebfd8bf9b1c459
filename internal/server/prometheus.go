// prometheus.go - Prometheus text exposition of the in-process counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

var serverStartTime = time.Now()

type promMetric struct {
	name, help, kind string
	value            func(MetricsSnapshot) string
}

func counter(name, help string, v func(MetricsSnapshot) int64) promMetric {
	return promMetric{name, help, "counter", func(s MetricsSnapshot) string {
		return fmt.Sprintf("%d", v(s))
	}}
}

var promMetrics = []promMetric{
	counter("slotdrop_requests_total", "Total number of HTTP requests", func(s MetricsSnapshot) int64 { return s.RequestsTotal }),
	counter("slotdrop_request_errors_4xx_total", "Requests answered with a 4xx status", func(s MetricsSnapshot) int64 { return s.RequestErrors4xx }),
	counter("slotdrop_request_errors_5xx_total", "Requests answered with a 5xx status", func(s MetricsSnapshot) int64 { return s.RequestErrors5xx }),
	counter("slotdrop_route_misses_total", "Requests for unregistered paths", func(s MetricsSnapshot) int64 { return s.RouteMissesTotal }),
	counter("slotdrop_uploads_total", "Artifacts installed", func(s MetricsSnapshot) int64 { return s.UploadsTotal }),
	counter("slotdrop_upload_bytes_total", "Bytes installed into the slot", func(s MetricsSnapshot) int64 { return s.UploadBytesTotal }),
	counter("slotdrop_upload_parse_errors_total", "Uploads rejected as malformed or interrupted", func(s MetricsSnapshot) int64 { return s.ParseErrorsTotal }),
	counter("slotdrop_upload_missing_file_total", "Uploads without a file part", func(s MetricsSnapshot) int64 { return s.MissingFileTotal }),
	counter("slotdrop_upload_install_errors_total", "Uploads that could not be installed", func(s MetricsSnapshot) int64 { return s.InstallErrorsTotal }),
	counter("slotdrop_serves_total", "Artifact responses streamed in full", func(s MetricsSnapshot) int64 { return s.ServesTotal }),
	counter("slotdrop_serve_bytes_total", "Artifact bytes streamed", func(s MetricsSnapshot) int64 { return s.ServeBytesTotal }),
	counter("slotdrop_serve_not_found_total", "Artifact requests before any upload", func(s MetricsSnapshot) int64 { return s.ServeNotFoundTotal }),
	counter("slotdrop_serve_errors_total", "Artifact requests that failed or aborted", func(s MetricsSnapshot) int64 { return s.ServeErrorsTotal }),
}

// metricsHandler returns an HTTP handler for the /metrics endpoint
func (s *Server) metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := GetMetrics().Snapshot()

		var output strings.Builder
		output.WriteString("# HELP slotdrop_info Application version info\n")
		output.WriteString("# TYPE slotdrop_info gauge\n")
		fmt.Fprintf(&output, "slotdrop_info{version=\"%s\",commit=\"%s\"} 1\n\n",
			prometheusLabel(s.build.Version), prometheusLabel(s.build.Commit))

		for _, pm := range promMetrics {
			fmt.Fprintf(&output, "# HELP %s %s\n", pm.name, pm.help)
			fmt.Fprintf(&output, "# TYPE %s %s\n", pm.name, pm.kind)
			fmt.Fprintf(&output, "%s %s\n\n", pm.name, pm.value(snapshot))
		}

		present := 0
		if _, err := s.slot.Stat(); err == nil {
			present = 1
		}
		output.WriteString("# HELP slotdrop_artifact_present Whether an artifact is installed\n")
		output.WriteString("# TYPE slotdrop_artifact_present gauge\n")
		fmt.Fprintf(&output, "slotdrop_artifact_present %d\n\n", present)

		output.WriteString("# HELP slotdrop_uptime_seconds Application uptime in seconds\n")
		output.WriteString("# TYPE slotdrop_uptime_seconds counter\n")
		fmt.Fprintf(&output, "slotdrop_uptime_seconds %.0f\n", time.Since(serverStartTime).Seconds())

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	})
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
