package apiserver

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/djarekg/tampa-taffy/internal/config"
	"github.com/djarekg/tampa-taffy/internal/store"
	"github.com/djarekg/tampa-taffy/internal/telemetry"
	"github.com/djarekg/tampa-taffy/pkg/api"
)

// Store is the persistence the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context) ([]api.User, error)
	GetUser(ctx context.Context, id string) (*api.User, error)
	UserByEmail(ctx context.Context, email string) (*api.User, error)
	CredentialByEmail(ctx context.Context, email string) (*store.Credential, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]api.SearchResult, error)
	SetActive(ctx context.Context, id string, active bool) (*api.User, error)
}

// Config configures the server.
type Config struct {
	Address     string
	CORSOrigin  string
	TokenSecret []byte
	TokenTTL    time.Duration
	SearchRate  float64
	SearchBurst int
	Production  bool

	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns a development configuration on :4000.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":4000",
		TokenSecret:       []byte(config.DevSecret),
		TokenTTL:          time.Hour,
		SearchRate:        5,
		SearchBurst:       10,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ConfigFrom maps environment settings onto a server config.
func ConfigFrom(c *config.Config) *Config {
	cfg := DefaultConfig()
	cfg.Address = c.Addr()
	cfg.CORSOrigin = c.CORSOrigin
	cfg.TokenSecret = []byte(c.AccessTokenSecret)
	cfg.TokenTTL = c.TokenTTL
	cfg.SearchRate = c.SearchRate
	cfg.SearchBurst = c.SearchBurst
	cfg.Production = c.IsProduction()
	return cfg
}

// Server is the API HTTP server.
type Server struct {
	config  *Config
	store   Store
	tokens  *Tokens
	limiter *rateLimiter
	logger  *slog.Logger

	telemetry *telemetry.Telemetry
	gatherer  prometheus.Gatherer
	live      http.Handler

	router     chi.Router
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithTelemetry instruments requests and serves /metrics from gatherer.
func WithTelemetry(t *telemetry.Telemetry, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.telemetry = t
		s.gatherer = gatherer
	}
}

// WithLive mounts a websocket handler at /live.
func WithLive(h http.Handler) Option {
	return func(s *Server) {
		s.live = h
	}
}

// New builds the server and its routes.
func New(cfg *Config, st Store, opts ...Option) *Server {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.SearchRate == 0 {
		cfg.SearchRate = defaults.SearchRate
	}
	if cfg.SearchBurst == 0 {
		cfg.SearchBurst = defaults.SearchBurst
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	s := &Server{
		config:  cfg,
		store:   st,
		tokens:  NewTokens(cfg.TokenSecret, cfg.TokenTTL),
		limiter: newRateLimiter(cfg.SearchRate, cfg.SearchBurst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "apiserver")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.telemetry != nil {
		r.Use(s.telemetry.Middleware)
	}
	r.Use(s.requestLogger)
	r.Use(s.cors)

	r.NotFound(s.handle(func(http.ResponseWriter, *http.Request) error {
		return newHTTPError(http.StatusNotFound, "Not found")
	}))
	r.MethodNotAllowed(s.handle(func(http.ResponseWriter, *http.Request) error {
		return newHTTPError(http.StatusMethodNotAllowed, "Method not allowed")
	}))

	r.Get("/healthz", s.handle(s.health))

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.handle(s.listUsers))
		r.Get("/{id}", s.handle(s.getUser))
		r.With(s.requireAuth).Post("/{id}/active", s.handle(s.setUserActive))
	})

	r.With(s.rateLimit).Get("/search/{query}", s.handle(s.search))

	r.Route("/auth", func(r chi.Router) {
		r.With(s.requireAuth).Get("/users/{username}", s.handle(s.authUser))
		r.Post("/signin", s.handle(s.signIn))
		r.Post("/signout", s.handle(s.signOut))
		r.Get("/authenticated", s.handle(s.authenticated))
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.live != nil {
		r.Handle("/live", s.live)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tokens returns the token service.
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	sweepDone := make(chan struct{})
	defer close(sweepDone)
	go s.sweepLimiters(sweepDone)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) sweepLimiters(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := s.limiter.sweep(10 * time.Minute); n > 0 {
				s.logger.Debug("rate limiters swept", "count", n)
			}
		}
	}
}
