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

	"github.com/claimtrack/claimtrack/internal/config"
	"github.com/claimtrack/claimtrack/internal/domain/admin"
	"github.com/claimtrack/claimtrack/internal/domain/claim"
	"github.com/claimtrack/claimtrack/internal/domain/identity"
	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/internal/platform/blobstore"
	"github.com/claimtrack/claimtrack/internal/platform/db"
	"github.com/claimtrack/claimtrack/internal/platform/middleware"
)

const (
	version     = "0.1.0"
	tokenIssuer = "claims-server"
	// Ten documents of 5MB plus form fields.
	maxBodySize = "55M"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "claims-server",
		Short: "Insurance claim tracking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the claims API server",
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

			return withHandle(func(ctx context.Context, h *db.Handle) error {
				migrator := db.NewMigrator(h.Pool, dir)
				fmt.Printf("Running migrations on schema: %s\n", schema)

				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			return withHandle(func(ctx context.Context, h *db.Handle) error {
				statuses, err := db.NewMigrator(h.Pool, dir).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("Migration status for schema: %s\n", schema)
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
			})
		},
	}
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.Flags().String("dir", "./migrations", "Path to migrations directory")
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with an explicit role",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withHandle(func(ctx context.Context, h *db.Handle) error {
				svc := identity.NewService(identity.NewUserRepo(h), newTokenService(cfg), cfg.BcryptCost, zerolog.Nop())
				u, err := svc.CreateUser(ctx, email, password, role)
				if err != nil {
					return err
				}
				fmt.Printf("Created user %d (%s) with role %s\n", u.ID, u.Email, u.Role)
				return nil
			})
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", string(auth.RoleSuperAdmin), "Role: Super Admin, Admin, Staff or Hospital")
	cmd.AddCommand(createCmd)

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withHandle opens the store for a one-shot command.
func withHandle(fn func(ctx context.Context, h *db.Handle) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	h, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBQueryTimeout)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(ctx, h)
}

func newTokenService(cfg *config.Config) *auth.JWTService {
	return auth.NewJWTService(auth.TokenConfig{
		AccessSecret:  []byte(cfg.JWTSecretKey),
		RefreshSecret: []byte(cfg.JWTRefreshSecretKey),
		AccessTTL:     cfg.JWTExpiration,
		RefreshTTL:    cfg.JWTRefreshExpiration,
		Issuer:        tokenIssuer,
	})
}

func newDocumentStore(ctx context.Context, cfg *config.Config) (blobstore.DocumentStore, error) {
	if cfg.StorageBackend == "s3" {
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.AWSEndpointURL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := blobstore.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// app holds the wired services the router exposes.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	handle   *db.Handle
	tokens   auth.TokenVerifier
	identity *identity.Service
	admin    *admin.Service
	claims   *claim.Service
}

func newApp(cfg *config.Config, logger zerolog.Logger, h *db.Handle, docs blobstore.DocumentStore) (*app, error) {
	lifecycle, err := claim.NewLifecycle(cfg.InitialClaimStatus)
	if err != nil {
		return nil, err
	}
	tokens := newTokenService(cfg)

	claimRepo := claim.NewRepo(h)
	identitySvc := identity.NewService(identity.NewUserRepo(h), tokens, cfg.BcryptCost, logger)
	adminSvc := admin.NewService(admin.NewHospitalRepo(h), admin.NewTPARepo(h), claimRepo, logger)
	claimSvc := claim.NewService(claimRepo, adminSvc, docs, lifecycle, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		handle:   h,
		tokens:   tokens,
		identity: identitySvc,
		admin:    adminSvc,
		claims:   claimSvc,
	}, nil
}

func newRouter(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(a.logger)

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(!a.cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.AccessTokenHeader},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.handle))

	root := e.Group(a.cfg.APIPrefix)

	identity.NewHandler(a.identity).RegisterRoutes(root)

	claimHandler := claim.NewHandler(a.claims, a.identity)

	rl := middleware.DefaultRateLimitConfig()
	if a.cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = a.cfg.RateLimitRPS
	}
	if a.cfg.RateLimitBurst > 0 {
		rl.BurstSize = a.cfg.RateLimitBurst
	}
	claimHandler.RegisterPublicRoutes(root.Group("/public", middleware.RateLimit(rl)))

	protected := root.Group("", auth.Authenticate(a.tokens))
	admin.NewHandler(a.admin, a.identity).RegisterRoutes(protected)
	claimHandler.RegisterRoutes(protected)

	return e
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	h, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBQueryTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer h.Close()
	logger.Info().Msg("connected to database")

	docs, err := newDocumentStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to initialize document store")
	}

	a, err := newApp(cfg, logger, h, docs)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire services")
	}
	e := newRouter(a)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageBackend).Msg("starting server")
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
