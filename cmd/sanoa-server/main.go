package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sanoapro/sanoa-lab-sub000/internal/config"
	"github.com/sanoapro/sanoa-lab-sub000/internal/domain/agenda"
	"github.com/sanoapro/sanoa-lab-sub000/internal/platform/auth"
	"github.com/sanoapro/sanoa-lab-sub000/internal/platform/calendar"
	"github.com/sanoapro/sanoa-lab-sub000/internal/platform/db"
	"github.com/sanoapro/sanoa-lab-sub000/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sanoa-server",
		Short: "Agenda analytics and no-show risk API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API server",
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

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Use Atlas CLI for migration rollback: atlas schema apply --dir migrations/")
			return nil
		},
	})

	return cmd
}

// reportCmd runs agenda reports from the command line, against the same
// booking source the server would use, and prints the result as JSON.
func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run agenda reports from the command line",
	}

	var org, from, to, tz string
	cmd.PersistentFlags().StringVar(&org, "org", "", "Organization identifier")
	cmd.PersistentFlags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	cmd.PersistentFlags().StringVar(&to, "to", "", "End date (YYYY-MM-DD, inclusive)")
	cmd.PersistentFlags().StringVar(&tz, "tz", "", "IANA timezone for date bucketing")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Day and resource KPI summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fallback, _ := cmd.Flags().GetString("resource-fallback")
			return withService(func(ctx context.Context, svc *agenda.Service, q agenda.Query) (interface{}, error) {
				return svc.Summary(ctx, q, fallback)
			}, org, from, to, tz)
		},
	}
	summaryCmd.Flags().String("resource-fallback", "", "Label for bookings without a resource")
	cmd.AddCommand(summaryCmd)

	riskCmd := &cobra.Command{
		Use:   "risk",
		Short: "Top at-risk patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			minN, _ := cmd.Flags().GetInt("min-n")
			top, _ := cmd.Flags().GetInt("top")
			return withService(func(ctx context.Context, svc *agenda.Service, q agenda.Query) (interface{}, error) {
				return svc.PatientRisk(ctx, q, minN, top)
			}, org, from, to, tz)
		},
	}
	riskCmd.Flags().Int("min-n", agenda.DefaultRiskMinN, "Minimum bookings per patient")
	riskCmd.Flags().Int("top", agenda.DefaultRiskTop, "Maximum rows to return")
	cmd.AddCommand(riskCmd)

	return cmd
}

// withService loads config, connects the booking source, runs the report and
// prints it to stdout.
func withService(run func(context.Context, *agenda.Service, agenda.Query) (interface{}, error), org, from, to, tz string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var source agenda.BookingSource
	if cfg.CalendarAPIURL != "" {
		source = calendar.NewClient(cfg.CalendarAPIURL, cfg.CalendarToken)
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		source = agenda.NewRepoPG(pool)
	}

	if org == "" {
		org = cfg.DefaultOrg
	}
	svc := agenda.NewService(source, nil, cfg.DefaultTZ)
	result, err := run(ctx, svc, agenda.Query{OrgID: org, From: from, To: to, TZ: tz})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Booking source: local database, or an external calendar provider when
	// CAL_API_URL is configured. The raw bookings endpoint needs the database
	// and is only registered when a pool is available.
	ctx := context.Background()
	var (
		source agenda.BookingSource
		repo   agenda.BookingRepository
	)
	if cfg.CalendarAPIURL != "" {
		source = calendar.NewClient(cfg.CalendarAPIURL, cfg.CalendarToken)
		logger.Info().Str("url", cfg.CalendarAPIURL).Msg("reading bookings from calendar API")
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		pg := agenda.NewRepoPG(pool)
		repo = pg
		if source == nil {
			source = pg
		}
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Org resolution middleware
	e.Use(middleware.Org(cfg.DefaultOrg))

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Agenda analytics
	svc := agenda.NewService(source, nil, cfg.DefaultTZ)
	handler := agenda.NewHandler(svc, repo)
	handler.RegisterRoutes(apiV1)

	// Graceful shutdown
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
