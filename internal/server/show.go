package server

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// showHandler streams the current artifact. Opening happens before any
// header is written, so a missing or unreadable artifact still gets a clean
// error page. Once bytes flow, a failure can only abort the connection.
func (s *Server) showHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m := GetMetrics()

		f, info, err := s.slot.Open()
		if err != nil {
			m.RecordServeError(err)
			writeError(w, err)
			return
		}
		defer func() { _ = f.Close() }()

		w.Header().Set("Content-Type", s.slot.ContentType())
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)

		n, err := io.Copy(w, f)
		if err != nil {
			m.RecordServeError(err)
			Warn("serve_aborted", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"bytes":      n,
				"error":      err.Error(),
			})
			panic(http.ErrAbortHandler)
		}
		m.RecordServe(n, time.Since(start))
	})
}
