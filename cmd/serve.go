package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/title-relay/internal/api"
	"github.com/JakeFAU/title-relay/internal/config"
	"github.com/JakeFAU/title-relay/internal/contentenc"
	"github.com/JakeFAU/title-relay/internal/fetch"
	"github.com/JakeFAU/title-relay/internal/id/uuid"
	"github.com/JakeFAU/title-relay/internal/logging"
	"github.com/JakeFAU/title-relay/internal/metrics"
	"github.com/JakeFAU/title-relay/internal/override"
	"github.com/JakeFAU/title-relay/internal/policy/ratelimit"
	"github.com/JakeFAU/title-relay/internal/relay"
)

// newServeCmd creates the 'serve' subcommand, which runs the relay until
// SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the title relay HTTP server",
		Long: `Loads configuration, then serves the relay on server.port and, unless
metrics.port is 0, Prometheus metrics on a separate admin listener.`,
		Args: cobra.NoArgs,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, config.ServiceName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	if cfg.File != "" {
		logger.Info("config loaded", zap.String("file", cfg.File))
	} else {
		logger.Info("config loaded from defaults and environment")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := buildHandler(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	servers := []*http.Server{srv}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port), zap.String("version", config.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if cfg.Metrics.Port > 0 {
		admin := newAdminServer(cfg)
		servers = append(servers, admin)
		go func() {
			logger.Info("metrics server started", zap.Int("port", cfg.Metrics.Port))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	return nil
}

// buildHandler assembles the relay pipeline behind the public router.
func buildHandler(cfg config.Config, logger *zap.Logger) (http.Handler, error) {
	table, err := override.New(cfg.Overrides...)
	if err != nil {
		return nil, fmt.Errorf("build override table: %w", err)
	}

	userAgent := cfg.Fetch.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent()
	}
	client := fetch.New(fetch.Config{
		Options: fetch.Options{
			UserAgent:      userAgent,
			AcceptLanguage: cfg.Fetch.PreferredLanguage,
			From:           cfg.Fetch.AdminContact,
			Timeout:        cfg.Fetch.Timeout,
		},
		MaxRedirects:   cfg.Fetch.MaxRedirects,
		MaxPayloadSize: cfg.Fetch.MaxPayloadSize,
	}, logger.Named("fetch"))

	svc := relay.NewService(
		table,
		client,
		contentenc.Decoder{MaxSize: cfg.Fetch.MaxDecodedSize},
		logger.Named("relay"),
	)

	server := api.NewServer(svc, api.Options{
		Watchdog: watchdogTimeout(cfg.Watchdog, api.DebuggerAttached(), logger),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.RPS,
			DefaultBurst: cfg.RateLimit.Burst,
		}),
		IDs: uuid.New(),
	}, logger.Named("api"))

	logger.Info("relay configured",
		zap.Int("overrides", table.Len()),
		zap.Int("max_redirects", cfg.Fetch.MaxRedirects),
		zap.Int64("max_payload_size", cfg.Fetch.MaxPayloadSize),
		zap.Int64("max_decoded_size", cfg.Fetch.MaxDecodedSize),
		zap.Float64("ratelimit_rps", cfg.RateLimit.RPS),
	)
	return server.Handler(), nil
}

func watchdogTimeout(cfg config.WatchdogConfig, debugger bool, logger *zap.Logger) time.Duration {
	switch {
	case cfg.Disabled:
		logger.Info("watchdog disabled by configuration")
		return 0
	case debugger:
		logger.Warn("debugger attached; watchdog disabled")
		return 0
	default:
		return cfg.Timeout
	}
}

func newAdminServer(cfg config.Config) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}
