package main

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medrec/medrec/internal/config"
	"github.com/medrec/medrec/internal/domain/patient"
	"github.com/medrec/medrec/internal/platform/audit"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/breakglass"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/middleware"
	"github.com/medrec/medrec/internal/platform/phicrypto"
	"github.com/medrec/medrec/internal/platform/tenancy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medrec-server",
		Short: "Multi-tenant clinical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema and migrate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			ns, err := tenancy.Provision(ctx, pool, name, dir)
			if err != nil {
				return err
			}
			fmt.Printf("Tenant schema %s created and migrated.\n", ns)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// PHI field encryption. Production requires a configured key; development
	// falls back to an ephemeral one so encrypted fields survive only a single
	// process lifetime.
	key, err := cfg.EncryptionKey()
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal().Err(err).Msg("PHI encryption key required in production")
		}
		key = make([]byte, 32)
		if _, err := cryptorand.Read(key); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate ephemeral PHI key")
		}
		logger.Warn().Msg("PHI_ENCRYPTION_KEY not set; using ephemeral key")
	}
	keyring, err := phicrypto.NewKeyring(key, cfg.PHIKeyVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PHI keyring")
	}

	resolver, err := tenancy.NewResolver(cfg.DefaultTenant, []string{"/health", "/metrics"})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid default tenant")
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	auditStore := audit.NewPGStore(pool)
	recorder := audit.NewRecorder(auditStore, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.Middleware(verifier))
	e.Use(tenancy.Middleware(resolver, pool))
	if cfg.AuditEnabled {
		e.Use(middleware.Audit(recorder))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1 := e.Group("/api/v1")

	auditHandler := audit.NewHandler(auditStore)
	auditHandler.RegisterRoutes(apiV1)

	grantStore := breakglass.NewMemoryGrantStore()
	bgManager := breakglass.NewManager(grantStore, recorder, logger)
	bgHandler := breakglass.NewHandler(bgManager)
	bgHandler.RegisterRoutes(apiV1)

	patientRepo := patient.NewPGRepository(pool)
	patientSvc := patient.NewService(patientRepo, keyring, recorder, logger)
	patientHandler := patient.NewHandler(patientSvc)
	patientHandler.RegisterRoutes(apiV1)

	// Periodic sweep so expired grants don't linger between status checks.
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := grantStore.PurgeExpired(time.Now().UTC()); n > 0 {
					logger.Info().Int("purged", n).Msg("expired break-glass grants purged")
				}
			}
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	return nil
}
