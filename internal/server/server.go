package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr        string // e.g. ":8888"
	Build       BuildInfo
	DataDir     string // directory holding the slot
	SlotName    string // file name of the artifact inside DataDir
	ContentType string // content type the artifact is served with

	// DB enables the install audit ledger when non-nil.
	DB *sql.DB
	// Mirror copies each installed artifact to object storage when non-nil.
	Mirror *Mirror
}

type Server struct {
	httpServer *http.Server
	slot       *Slot
	audit      Recorder
	mirror     *Mirror
	db         *sql.DB
	build      BuildInfo
}

// New prepares the slot and builds the route table. The table is fixed from
// here on.
func New(cfg Config) (*Server, error) {
	slot, err := NewSlot(cfg.DataDir, cfg.SlotName, cfg.ContentType)
	if err != nil {
		return nil, err
	}

	s := &Server{
		slot:   slot,
		audit:  nopRecorder{},
		mirror: cfg.Mirror,
		db:     cfg.DB,
		build:  cfg.Build,
	}
	if cfg.DB != nil {
		s.audit = NewSQLRecorder(cfg.DB)
	}

	// Wrap middleware: requestID -> logging -> security headers -> router
	var handler http.Handler = NewRouter(s.Routes())
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Routes returns the route table served by s.
func (s *Server) Routes() RouteTable {
	form := formHandler()
	return RouteTable{
		"/":        form,
		"/start":   form,
		"/upload":  s.uploadHandler(),
		"/show":    s.showHandler(),
		"/health":  http.HandlerFunc(s.HandleHealth),
		"/metrics": s.metricsHandler(),
	}
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Slot returns the artifact slot the server installs into.
func (s *Server) Slot() *Slot {
	return s.slot
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
