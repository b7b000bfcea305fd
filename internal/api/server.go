package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/title-relay/internal/id/uuid"
	"github.com/JakeFAU/title-relay/internal/metrics"
	"github.com/JakeFAU/title-relay/internal/policy/ratelimit"
	"github.com/JakeFAU/title-relay/internal/relay"
)

const (
	healthBody         = "Healthy"
	gatewayTimeoutBody = "Gateway Timeout"

	contentTypeText      = "text/plain"
	cacheControlNetwork  = "no-cache"
	cacheControlOverride = "public, must-revalidate"
)

// Resolver answers a relay path; *relay.Service implements it.
type Resolver interface {
	Resolve(ctx context.Context, path string) relay.Outcome
}

// Options tune a Server.
type Options struct {
	// Watchdog bounds each relay request end to end. Zero disables it.
	Watchdog time.Duration
	// Limiter, when enabled, gates the relay routes. /health is never limited.
	Limiter *ratelimit.Limiter
	// IDs mints X-Request-ID values; nil uses UUIDv7.
	IDs IDGenerator
}

// Server wires the relay routes to a Resolver.
type Server struct {
	router   chi.Router
	resolver Resolver
	watchdog time.Duration
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(resolver Resolver, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver: resolver,
		watchdog: opts.Watchdog,
		logger:   logger,
	}

	ids := opts.IDs
	if ids == nil {
		ids = uuid.New()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.NotFound(s.badRequest)
	r.MethodNotAllowed(s.badRequest)

	r.Get("/health", s.health)
	r.Group(func(r chi.Router) {
		r.Use(opts.Limiter.Middleware)
		r.Get("/http/*", s.title)
		r.Get("/https/*", s.title)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, healthBody); err != nil {
		s.logger.Debug("health write failed", zap.Error(err))
	}
}

func (s *Server) badRequest(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusBadRequest)
}

func (s *Server) title(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.RequestURI(), "/")
	out := s.run(r.Context(), path, requestLogger(r.Context(), s.logger))
	if out.Source != "" {
		metrics.ObserveTitle(out.Source, out.Status)
	}
	s.write(w, out)
}

// run resolves path under the watchdog and returns whichever outcome claimed
// the terminal slot first.
func (s *Server) run(parent context.Context, path string, logger *zap.Logger) relay.Outcome {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	term := newTerminal()
	if s.watchdog > 0 {
		timer := time.AfterFunc(s.watchdog, func() {
			if term.offer(relay.Outcome{Status: http.StatusGatewayTimeout, Body: gatewayTimeoutBody}) {
				cancel()
				metrics.ObserveWatchdogTimeout()
				logger.Warn("watchdog fired", zap.String("path", path), zap.Duration("after", s.watchdog))
			}
		})
		defer timer.Stop()
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in title pipeline", zap.Any("error", rec), zap.Stack("stack"))
				term.offer(relay.Outcome{Status: http.StatusInternalServerError})
			}
		}()
		term.offer(s.resolver.Resolve(ctx, path))
	}()

	return term.wait()
}

func (s *Server) write(w http.ResponseWriter, out relay.Outcome) {
	if out.Bare {
		w.WriteHeader(out.Status)
		return
	}
	h := w.Header()
	if out.Status == http.StatusOK || out.Body != "" {
		h.Set("Content-Type", contentTypeText)
	}
	if out.Status == http.StatusOK {
		h.Set("Cache-Control", cacheControlFor(out.Source))
		h.Set("Access-Control-Allow-Origin", "*")
	}
	w.WriteHeader(out.Status)
	if out.Body == "" {
		return
	}
	if _, err := io.WriteString(w, out.Body); err != nil {
		s.logger.Debug("response write failed", zap.Error(err))
	}
}

func cacheControlFor(source string) string {
	if source == metrics.SourceOverride {
		return cacheControlOverride
	}
	return cacheControlNetwork
}
