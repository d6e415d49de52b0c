package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/erms/erms/internal/config"
	"github.com/erms/erms/internal/domain/alert"
	"github.com/erms/erms/internal/domain/bed"
	"github.com/erms/erms/internal/domain/patient"
	"github.com/erms/erms/internal/domain/prescription"
	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/internal/domain/vitals"
	"github.com/erms/erms/internal/platform/auth"
	"github.com/erms/erms/internal/platform/db"
	"github.com/erms/erms/internal/platform/groq"
	"github.com/erms/erms/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "erms-server",
		Short: "Emergency room management backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	var migrateSchema string
	var migrateDir string

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			applied, err := db.NewMigrator(pool, migrateDir).Up(ctx, migrateSchema)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s) to schema %s\n", applied, migrateSchema)
			return nil
		},
	}
	migrateUpCmd.Flags().StringVar(&migrateSchema, "schema", "tenant_default", "target schema")
	migrateUpCmd.Flags().StringVar(&migrateDir, "dir", "./migrations", "migrations directory")

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			statuses, err := db.NewMigrator(pool, migrateDir).Status(ctx, migrateSchema)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%3d  %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
	migrateStatusCmd.Flags().StringVar(&migrateSchema, "schema", "tenant_default", "target schema")
	migrateStatusCmd.Flags().StringVar(&migrateDir, "dir", "./migrations", "migrations directory")

	migrateDownCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Use Atlas CLI for migration rollback: atlas schema apply --dir migrations/")
			return nil
		},
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateDownCmd)

	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant management commands",
	}

	var tenantName string
	tenantCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and run migrations in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantName == "" {
				return fmt.Errorf("--name is required")
			}
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
			if err := db.CreateTenantSchema(ctx, pool, tenantName, migrateDir); err != nil {
				return err
			}
			fmt.Printf("tenant %s created\n", tenantName)
			return nil
		},
	}
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "tenant name")
	tenantCreateCmd.Flags().StringVar(&migrateDir, "dir", "./migrations", "migrations directory")
	tenantCmd.AddCommand(tenantCreateCmd)

	rootCmd.AddCommand(serveCmd, migrateCmd, tenantCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Groq classifier. With no API key the client stays disabled and the
	// triage engine runs on the rule-based fallback.
	llm := groq.New(groq.Config{
		APIKey:      cfg.GroqAPIKey,
		BaseURL:     cfg.GroqBaseURL,
		Model:       cfg.GroqModel,
		VisionModel: cfg.GroqVisionModel,
		MaxTokens:   cfg.GroqMaxTokens,
		Temperature: cfg.GroqTemperature,
		Timeout:     cfg.GroqTimeout(),
	}, logger)
	engine := triage.NewEngine(llm, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
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

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	api := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories
	triageRepo := triage.NewRepoPG(pool)
	alertRepo := alert.NewRepoPG(pool)
	deptRepo := bed.NewDepartmentRepoPG(pool)
	bedRepo := bed.NewBedRepoPG(pool)
	rxRepo := prescription.NewRepoPG(pool)
	vitalsRepo := vitals.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)

	// Services. The patient service is the trigger's patient source, so it
	// is built first and the trigger wired back into it afterwards.
	alertSvc := alert.NewService(alertRepo, logger)
	bedSvc := bed.NewService(deptRepo, bedRepo, logger)
	patientSvc := patient.NewService(patientRepo, vitalsRepo, bedSvc, alertSvc, logger)

	formulary := prescription.NewFormulary(llm, logger)
	formulary.StartCleanup(ctx)

	vitalsSvc := vitals.NewService(vitalsRepo, engine, patientSvc, nil, alertSvc, bedRepo, logger)
	rxSvc := prescription.NewService(rxRepo, formulary, patientSvc, nil, alertSvc, logger)

	trigger := triage.NewTrigger(engine, triageRepo, patientSvc, vitalsSvc, rxSvc, alertSvc, logger)
	patientSvc.SetTriage(trigger)
	vitalsSvc.SetRetriager(trigger)
	rxSvc.SetRetriager(trigger)

	// Routes
	triage.NewHandler(trigger).RegisterRoutes(api)
	alert.NewHandler(alertSvc).RegisterRoutes(api)
	bed.NewHandler(bedSvc).RegisterRoutes(api)
	prescription.NewHandler(rxSvc).RegisterRoutes(api)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
