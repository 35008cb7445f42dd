package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/checkin/internal/api"
	"github.com/Togather-Foundation/checkin/internal/api/handlers"
	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/config"
	"github.com/Togather-Foundation/checkin/internal/domain/access"
	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/metrics"
	"github.com/Togather-Foundation/checkin/internal/storage/postgres"
	"github.com/Togather-Foundation/checkin/internal/telemetry"
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the check-in HTTP server",
		Long: `Start the HTTP server and accept API requests until SIGINT or SIGTERM.

On startup the server applies pending migrations (unless disabled) and
creates the bootstrap admin when ADMIN_USERNAME, ADMIN_EMAIL and
ADMIN_PASSWORD are all set.

Examples:
  checkin serve
  checkin serve --port 9090 --log-level debug
  checkin serve --config /etc/togather/checkin.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if opts.host != "" {
				cfg.Server.Host = opts.host
			}
			if opts.port != 0 {
				cfg.Server.Port = opts.port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "listen address (default 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (default 8080)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	info := buildInfo()
	logger.Info().Str("version", info.Version).Str("environment", cfg.Environment).Msg("starting check-in server")

	metrics.Init(info.Version, info.GitCommit, info.BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, info.Version, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown error")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := metrics.RegisterPool(pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	auditLogger := audit.NewLoggerWithZerolog(logger)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
	usersService := users.NewService(
		repo.Users(),
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		auditLogger,
		cfg.Auth.AllowAdminRegistration,
		logger,
	)
	eventsService := events.NewService(repo.Events(), auditLogger, logger)
	checkinsService := checkins.NewService(repo.Checkins(), auditLogger, logger)

	if err := bootstrapAdmin(ctx, usersService, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}

	handler := api.NewRouter(ctx, api.Deps{
		Config:   cfg,
		Logger:   logger,
		Users:    usersService,
		Events:   eventsService,
		Checkins: checkinsService,
		Auth:     access.NewGuard(tokens, usersService, logger),
		Health:   handlers.NewHealthChecker(repo, info.Version),
		Build:    info,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// AdminEnsurer creates the bootstrap admin when no matching account exists.
type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, username, email, password string) (bool, error)
}

func bootstrapAdmin(ctx context.Context, svc AdminEnsurer, cfg config.Config, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Username == "" || bootstrap.Password == "" || bootstrap.Email == "" {
		logger.Debug().Msg("admin bootstrap not configured; skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	created, err := svc.EnsureAdmin(ctx, bootstrap.Username, bootstrap.Email, bootstrap.Password)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	event := logger.Info().Str("username", bootstrap.Username)
	// Email is PII; keep it out of production logs.
	if cfg.Environment != "production" {
		event = event.Str("email", bootstrap.Email)
	}
	event.Msg("bootstrapped admin user")
	return nil
}
