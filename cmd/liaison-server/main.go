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

	"github.com/reconcile-care/liaison/internal/config"
	"github.com/reconcile-care/liaison/internal/domain/audit"
	"github.com/reconcile-care/liaison/internal/domain/casealert"
	"github.com/reconcile-care/liaison/internal/domain/columbia"
	"github.com/reconcile-care/liaison/internal/domain/diary"
	"github.com/reconcile-care/liaison/internal/domain/disclosure"
	"github.com/reconcile-care/liaison/internal/domain/identity"
	"github.com/reconcile-care/liaison/internal/platform/assistant"
	"github.com/reconcile-care/liaison/internal/platform/auth"
	"github.com/reconcile-care/liaison/internal/platform/db"
	"github.com/reconcile-care/liaison/internal/platform/email"
	"github.com/reconcile-care/liaison/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "liaison-server",
		Short: "Clinical liaison case-management server",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

	return cmd
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run the diary reminder/escalation scheduler",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Execute a single scheduler pass (for cron)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			sched, pool, err := buildScheduler(logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := sched.Run(context.Background())
			if err != nil {
				return err
			}
			out, _ := json.Marshal(report)
			fmt.Println(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "loop",
		Short: "Run scheduler passes on a fixed interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sched, pool, err := buildScheduler(logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info().Dur("interval", cfg.ReminderInterval).Msg("starting scheduler loop")
			sched.RunLoop(ctx, cfg.ReminderInterval)
			return nil
		},
	})

	return cmd
}

func buildScheduler(logger zerolog.Logger) (*diary.Scheduler, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}

	sched := diary.NewScheduler(
		diary.NewRepoPG(pool),
		identity.NewDirectoryPG(pool),
		email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom),
		audit.NewRepoPG(pool),
		logger,
		diary.SchedulerOptions{
			ResendGap:     cfg.ReminderResendGap,
			OverdueAfter:  cfg.OverdueAfter,
			MaxRecipients: cfg.EscalationMaxRecipients,
		},
	)
	return sched, pool, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware())
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	// Repositories
	auditRepo := audit.NewRepoPG(pool)
	disclosureRepo := disclosure.NewRepoPG(pool)
	caseRepo := disclosure.NewCaseRepoPG(pool)
	alertRepo := casealert.NewAlertRepoPG(pool)
	emergencyRepo := casealert.NewEmergencyAlertRepoPG(pool)
	diaryRepo := diary.NewRepoPG(pool)
	directory := identity.NewDirectoryPG(pool)

	// Services. The case-alert service implements the disclosure
	// pipeline's AlertCreator hook.
	alertSvc := casealert.NewService(alertRepo, emergencyRepo,
		casealert.NewHTTPNotifier(cfg.NotifyURL, cfg.NotifyToken), logger)
	disclosureSvc := disclosure.NewService(disclosureRepo, caseRepo, alertSvc,
		auditRepo, disclosure.DefaultRiskPolicy(), logger)
	disclosureSvc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	columbiaSvc := columbia.NewService(disclosureSvc, alertSvc, auditRepo, logger)
	diarySvc := diary.NewService(diaryRepo, logger)
	diaryAI := diary.NewAssistant(assistant.NewClient(cfg.AssistantURL, cfg.AssistantAPIKey), diaryRepo)

	// Routes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	disclosure.NewHandler(disclosureSvc).RegisterRoutes(apiV1)
	casealert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	columbia.NewHandler(columbiaSvc).RegisterRoutes(apiV1)
	diary.NewHandler(diarySvc, diaryAI).RegisterRoutes(apiV1)

	auditGroup := apiV1.Group("", auth.RequireRole(identity.ElevatedRoles...))
	audit.NewHandler(auditRepo).RegisterRoutes(auditGroup)

	// Reminder scheduler runs in-process alongside the server.
	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	sched := diary.NewScheduler(diaryRepo, directory,
		email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom),
		auditRepo, logger,
		diary.SchedulerOptions{
			ResendGap:     cfg.ReminderResendGap,
			OverdueAfter:  cfg.OverdueAfter,
			MaxRecipients: cfg.EscalationMaxRecipients,
		})
	go sched.RunLoop(schedCtx, cfg.ReminderInterval)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopSched()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
