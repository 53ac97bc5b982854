package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	auditPostgres "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/internal/auth"
	authPostgres "github.com/icastillejo/practice-management/internal/auth/postgres"
	"github.com/icastillejo/practice-management/internal/core/i18n"
	"github.com/icastillejo/practice-management/internal/dashboard"
	"github.com/icastillejo/practice-management/internal/person"
	personPostgres "github.com/icastillejo/practice-management/internal/person/postgres"
	"github.com/icastillejo/practice-management/internal/session"
	sessionPostgres "github.com/icastillejo/practice-management/internal/session/postgres"
	"github.com/icastillejo/practice-management/internal/transport/rest"
	"github.com/icastillejo/practice-management/internal/transport/swagger"
	"github.com/icastillejo/practice-management/internal/user"
	userPostgres "github.com/icastillejo/practice-management/internal/user/postgres"
	"github.com/icastillejo/practice-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	AuthService *auth.Service

	AuthHandler      *auth.Handler
	PersonHandler    *person.Handler
	SessionHandler   *session.Handler
	DashboardHandler *dashboard.Handler
	AuditHandler     *audit.Handler
	UserHandler      *user.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := swagger.ValidateDocument(context.Background(), swagger.DocumentPath); err != nil {
		fmt.Fprintf(os.Stderr, "OpenAPI document check failed: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB,
		deps.AuthHandler,
		deps.AuthService,
		deps.PersonHandler,
		deps.SessionHandler,
		deps.DashboardHandler,
		deps.AuditHandler,
		deps.UserHandler,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithConfig(config.Logging.Level, config.Logging.Format)
	appLogger := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	catalog, err := i18n.New(config.App.Locale)
	if err != nil {
		return nil, fmt.Errorf("failed to load locale %q: %w", config.App.Locale, err)
	}

	caps := auth.NewCapabilities(config.Permissions)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)

	authRepo := authPostgres.NewRepository(gormDB)
	authService := auth.NewService(authRepo, tokenGen, catalog, config.Security, caps, appLogger)
	authHandler := auth.NewHandler(authService)

	auditRepo := auditPostgres.NewAuditRepository(gormDB)
	auditService := audit.NewService(auditRepo, appLogger)
	auditHandler := audit.NewHandler(auditService)

	personRepo := personPostgres.NewPersonRepository(gormDB)
	personService := person.NewService(personRepo, caps, catalog, config.App, appLogger)
	personHandler := person.NewHandler(personService)

	sessionRepo := sessionPostgres.NewSessionRepository(gormDB)
	sessionService := session.NewService(sessionRepo, caps, catalog, config.App, appLogger)
	sessionHandler := session.NewHandler(sessionService)

	dashboardService := dashboard.NewService(personService, sessionService, caps, catalog, appLogger)
	dashboardHandler := dashboard.NewHandler(dashboardService)

	userRepo := userPostgres.NewUserRepository(gormDB)
	userService := user.NewService(userRepo, caps, catalog, config.Security, appLogger)
	userHandler := user.NewHandler(userService)

	return &Dependencies{
		Config: config,
		Logger: appLogger,
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),

		AuthService: authService,

		AuthHandler:      authHandler,
		PersonHandler:    personHandler,
		SessionHandler:   sessionHandler,
		DashboardHandler: dashboardHandler,
		AuditHandler:     auditHandler,
		UserHandler:      userHandler,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm opens the ORM connection the repositories run on. Timestamps are
// generated in UTC so session dates compare consistently.
func initGorm(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormPostgres.Open(cfg.Source), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open orm connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access orm connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gormDB, nil
}
