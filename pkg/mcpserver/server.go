// Package mcpserver serves a tool registry over HTTP: liveness, catalog
// discovery, per-tool invocation, Prometheus metrics and an optional Model
// Context Protocol bridge.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/metrics"
	"github.com/wilhg/toolwire/pkg/tool"
)

// DiscoveryPath is the catalog route.
const DiscoveryPath = "/_mcp/tools"

// BridgePath is where the MCP bridge is mounted; a tool named "mcp" is
// shadowed by it while the bridge is enabled.
const BridgePath = "/mcp"

// Config contains server timeouts and feature switches.
type Config struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MCPBridge       bool
	Version         string
}

// Server contains the configured router and dispatcher.
type Server struct {
	cfg     Config
	router  *chi.Mux
	disp    *tool.Dispatcher
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *logger.Logger) Option { return func(s *Server) { s.log = l } }

// WithMetrics enables /metrics and discovery counters.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// New constructs a Server with middleware and routes configured. It fails
// only when the bridge is enabled and the catalog cannot be exported.
func New(disp *tool.Dispatcher, cfg Config, opts ...Option) (*Server, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{cfg: cfg, router: chi.NewRouter(), disp: disp}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log).Named("server")

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(accessLog(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(cfg.RequestTimeout))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errmodel.WriteHTTP(w, r, errmodel.Validation(errmodel.CodeNotFound, "Not found", map[string]any{"path": r.URL.Path}))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errmodel.WriteHTTP(w, r, errmodel.Policy("method_not_allowed", "Method not allowed", map[string]any{"method": r.Method, "path": r.URL.Path}))
	})

	s.router.Get("/", s.handleHealth)
	s.router.Get(DiscoveryPath, s.handleListTools)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if cfg.MCPBridge {
		bridge, err := NewBridge(disp, cfg.Version)
		if err != nil {
			return nil, err
		}
		s.router.Handle(BridgePath, bridge)
	}
	s.router.Post("/{tool}", s.handleInvoke)
	return s, nil
}

// Router exposes the root HTTP handler, instrumented with otelhttp.
func (s *Server) Router() http.Handler {
	return otelhttp.NewHandler(s.router, "toolserver",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	cat, err := s.disp.Registry().Catalog()
	if err != nil {
		s.log.Errorw("catalog unavailable", "error", err)
		s.observeDiscovery(http.StatusInternalServerError)
		errmodel.WriteHTTP(w, r, err)
		return
	}
	b, err := json.Marshal(cat)
	if err != nil {
		s.observeDiscovery(http.StatusInternalServerError)
		errmodel.WriteHTTP(w, r, errmodel.System(errmodel.CodeCatalogUnavailable, "catalog could not be encoded", nil, err))
		return
	}
	s.observeDiscovery(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tool")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	res, err := s.disp.Invoke(r.Context(), name, r.Body)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) observeDiscovery(status int) {
	if s.metrics != nil {
		s.metrics.ObserveDiscovery(status)
	}
}

// Serve listens on addr and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infow("listening", "addr", ln.Addr().String())
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Infow("shutting down")
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
