// CLAUDE:SUMMARY Read-only chi HTTP API and MCP tool server over refined snapshots, the field catalog, and coverage history.
// Package server exposes harvested snapshots over HTTP and MCP. The
// surface is read-only: it serves what the pipeline persisted and
// never mutates a snapshot.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"factharvest/catalog"
	"factharvest/config"
	"factharvest/history"
	"factharvest/record"
	"factharvest/refine"
	"factharvest/snapshot"
)

// Version identifies the server in MCP handshakes.
const Version = "1.0.0"

var errNoSnapshots = errors.New("server: no snapshots available")

// Server serves the data directory.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	history *history.Store
	router  *chi.Mux
	mcp     *mcp.Server
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithHistory enables the coverage-history endpoints and tools.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.history = store }
}

// New builds a server over cfg.Paths.DataDir.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: log,
		mcp: mcp.NewServer(&mcp.Implementation{Name: "factharvest", Version: Version}, nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	s.router = r
	s.routes()
	s.registerTools()

	r.Mount("/mcp", mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil))
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("server listening", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// resolveLayout maps an optional date to a snapshot layout. An empty
// date means the most recent snapshot.
func (s *Server) resolveLayout(date string) (snapshot.Layout, error) {
	if date == "" {
		layout, err := snapshot.Latest(s.cfg.Paths.DataDir)
		if err != nil {
			return snapshot.Layout{}, errNoSnapshots
		}
		return layout, nil
	}
	return snapshot.New(s.cfg.Paths.DataDir, date), nil
}

func (s *Server) readCatalog(layout snapshot.Layout) (*catalog.Catalog, error) {
	var cat catalog.Catalog
	path := filepath.Join(layout.AnalysisDir(), "field_catalog.json")
	if err := snapshot.ReadJSON(path, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *Server) readReport(layout snapshot.Layout) (*refine.Report, error) {
	var report refine.Report
	path := filepath.Join(layout.AnalysisDir(), "multi_value_report.json")
	if err := snapshot.ReadJSON(path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Server) refinedStore(layout snapshot.Layout) *record.Store {
	return record.NewStore(layout.RefinedDir())
}
