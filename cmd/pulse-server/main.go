package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pulse/pulse/internal/config"
	"github.com/pulse/pulse/internal/domain/agents"
	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/risk"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/auth"
	"github.com/pulse/pulse/internal/platform/db"
	"github.com/pulse/pulse/internal/platform/jobs"
	"github.com/pulse/pulse/internal/platform/llm"
	"github.com/pulse/pulse/internal/platform/middleware"
)

const version = "0.1.0"

// agentPrefix is exempt from the request timeout and gets its own rate limit.
const agentPrefix = "/api/agents"

func main() {
	rootCmd := &cobra.Command{
		Use:          "pulse-server",
		Short:        "Clinic scheduling dashboard API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(agentsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "pulse-server",
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(dirFlag string, fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir := dirFlag
		if dir == "" {
			dir = cfg.MigrationsDir
		}

		ctx := context.Background()
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, dir))
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(statuses []db.MigrationStatus) {
	fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Println("---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func agentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Run scheduling agents from the command line",
	}

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score no-show risk for every appointment on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			providerID, _ := cmd.Flags().GetString("provider")
			model, _ := cmd.Flags().GetString("model")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			// progress only needs to live as long as this process
			a, err := newApp(cfg, pool, jobs.NewMemoryStore(jobTTL(cfg)), logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			p, err := a.agents.ScoreBulk(ctx, agents.BulkRequest{Date: date, ProviderID: providerID, Model: model})
			if err != nil {
				return err
			}
			fmt.Printf("Scored %d/%d appointment(s): %d succeeded, %d failed (%s).\n",
				p.Completed, p.Total, p.Succeeded, p.Failed, p.State)
			if p.Failed > 0 {
				return fmt.Errorf("%d appointment(s) could not be scored", p.Failed)
			}
			return nil
		},
	}
	scoreCmd.Flags().String("date", "", "Day to score (YYYY-MM-DD)")
	scoreCmd.Flags().String("provider", "", "Only score this provider's appointments")
	scoreCmd.Flags().String("model", "", "Model name (default LLM_DEFAULT_MODEL)")
	_ = scoreCmd.MarkFlagRequired("date")
	cmd.AddCommand(scoreCmd)

	return cmd
}

// app holds the wired services shared by the server and the CLI.
type app struct {
	scheduling *scheduling.Service
	risk       *risk.Service
	audit      *audit.Service
	agents     *agents.Service
	recorder   *audit.Recorder
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, store jobs.Store, logger zerolog.Logger) (*app, error) {
	client, err := llm.NewOpenAI(llm.Config{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL})
	if err != nil {
		return nil, err
	}
	return wire(cfg, pool, client, store, logger)
}

func wire(cfg *config.Config, q db.Pool, client llm.Client, store jobs.Store, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.ClinicLocation()
	if err != nil {
		return nil, err
	}
	schedSvc := scheduling.NewService(
		scheduling.NewProviderRepoPG(q),
		scheduling.NewPatientRepoPG(q),
		scheduling.NewAppointmentRepoPG(q, loc),
		scheduling.NewWaitlistRepoPG(q),
		scheduling.NewWeatherRepoPG(q),
		db.NewTxManager(q),
	)
	riskSvc := risk.NewService(risk.NewRepoPG(q), cfg.LLMDefaultModel)
	auditSvc := audit.NewService(audit.NewRepoPG(q))
	recorder := audit.NewRecorder(auditSvc, cfg.AuditBufferSize, logger.With().Str("component", "audit").Logger())

	agentSvc := agents.NewService(client, schedSvc, riskSvc, recorder, store, agents.Config{
		DefaultModel: cfg.LLMDefaultModel,
		Concurrency:  cfg.AgentConcurrency,
		JobTimeout:   cfg.AgentTimeout,
	}, logger.With().Str("component", "agents").Logger())

	return &app{
		scheduling: schedSvc,
		risk:       riskSvc,
		audit:      auditSvc,
		agents:     agentSvc,
		recorder:   recorder,
	}, nil
}

// close stops background jobs first so their last audit entries still reach
// the recorder, then drains the recorder.
func (a *app) close(ctx context.Context) error {
	return errors.Join(a.agents.Shutdown(ctx), a.recorder.Close(ctx))
}

// jobTTL keeps a job's progress past the longest run AGENT_TIMEOUT allows.
func jobTTL(cfg *config.Config) time.Duration {
	return jobs.DefaultTTL + cfg.AgentTimeout
}

// newJobStore uses Redis when REDIS_URL is set so that progress survives a
// restart and is visible to every replica.
func newJobStore(ctx context.Context, cfg *config.Config) (jobs.Store, func() error, error) {
	if cfg.RedisURL == "" {
		return jobs.NewMemoryStore(jobTTL(cfg)), func() error { return nil }, nil
	}
	rc, err := jobs.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return jobs.NewRedisStore(rc, jobTTL(cfg)), rc.Close, nil
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func newEcho(cfg *config.Config, a *app, pinger db.Pinger, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{"X-Total-Count", "X-Next-Offset", echo.HeaderContentDisposition, echo.HeaderLocation},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, agentPrefix))
	}
	e.Use(authMiddleware(cfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	general := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		general = middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	}
	general.Skip = func(c echo.Context) bool {
		return strings.HasPrefix(c.Request().URL.Path, agentPrefix)
	}
	agentLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.AgentRateLimit,
		BurstSize:         max(1, int(cfg.AgentRateLimit*2)),
	})

	api := e.Group("/api", middleware.RateLimit(general))
	scheduling.NewHandler(a.scheduling).RegisterRoutes(api)
	risk.NewHandler(a.risk).RegisterRoutes(api)
	audit.NewHandler(a.audit).RegisterRoutes(api)
	agents.NewHandler(a.agents).RegisterRoutes(api, agentLimit)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth is active, every request is treated as admin")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore, err := newJobStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to redis")
		return err
	}
	defer closeStore()

	a, err := newApp(cfg, pool, store, logger)
	if err != nil {
		return err
	}

	e := newEcho(cfg, a, pool, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("background work did not finish")
	}
	logger.Info().Msg("server stopped")
	return nil
}
