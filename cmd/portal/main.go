package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/backend/memory"
	"github.com/tendant/simple-portal/pkg/backend/postgres"
	"github.com/tendant/simple-portal/pkg/backend/supabase"
	pkgconfig "github.com/tendant/simple-portal/pkg/config"
	"github.com/tendant/simple-portal/pkg/notification"
	"github.com/tendant/simple-portal/pkg/portal"
	portalapi "github.com/tendant/simple-portal/pkg/portal/api"
	"github.com/tendant/simple-portal/pkg/profile"
	"github.com/tendant/simple-portal/pkg/ratelimit"
	"github.com/tendant/simple-portal/pkg/tokengenerator"
)

type Config struct {
	AppConfig app.AppConfig
	Portal    pkgconfig.PortalConfig
}

func main() {
	loadEnvFile()

	config := Config{}
	if err := pkgconfig.Load(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger()
	slog.SetDefault(logger)

	cfg := config.Portal
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	// Durations were validated above.
	idleTimeout, _ := cfg.Shell.ParseIdleTimeout()
	sweepInterval, _ := cfg.Shell.ParseSweepInterval()
	callTimeout, _ := cfg.Shell.ParseCallTimeout()
	cookieTTL, _ := cfg.Cookie.ParseExpiry()

	notifier, err := newNotifier(cfg.Email, logger)
	if err != nil {
		slog.Error("Failed initializing notification manager", "err", err)
		os.Exit(1)
	}

	connector, closeConnector, err := newConnector(cfg, notifier, logger)
	if err != nil {
		slog.Error("Failed connecting backend", "backend", cfg.Backend.Kind, "data", cfg.Backend.DataBackend, "err", err)
		os.Exit(1)
	}
	defer closeConnector()

	registry := portal.NewRegistry(connector,
		portal.WithIdleTimeout(idleTimeout),
		portal.WithSweepInterval(sweepInterval),
		portal.WithMaxShells(cfg.Shell.MaxShells),
		portal.WithLogger(logger),
		portal.WithShellOptions(
			portal.WithMultiRole(cfg.Shell.MultiRole),
			portal.WithInvalidateIntermediateSession(cfg.Shell.InvalidateIntermediateSession),
		),
	)
	defer registry.Close()

	opts := []portalapi.Option{
		portalapi.WithCookie(tokengenerator.NewVisitorCookie(cfg.Cookie.Name, cfg.Cookie.Secure)),
		portalapi.WithCookieTTL(cookieTTL),
		portalapi.WithCallTimeout(callTimeout),
		portalapi.WithPasswordPolicy(profile.NewDefaultPasswordPolicyChecker(cfg.PasswordComplexityConfig.ToPasswordPolicy())),
		portalapi.WithNotifier(notifier),
		portalapi.WithLogger(logger),
	}
	if cfg.LoginRateLimit.Enabled {
		limiter := ratelimit.NewMiddleware(cfg.LoginRateLimit.ToMiddlewareConfig(), logger)
		defer limiter.Close()
		opts = append(opts, portalapi.WithRateLimiter(limiter))
		slog.Info("Login rate limiting enabled",
			"capacity", cfg.LoginRateLimit.Capacity,
			"refill_rate", cfg.LoginRateLimit.RefillRate)
	}
	if cfg.ShellRateLimit.Enabled {
		shellLimiter := ratelimit.NewMiddleware(cfg.ShellRateLimit.ToMiddlewareConfig(), logger)
		defer shellLimiter.Close()
		opts = append(opts, portalapi.WithShellLimiter(shellLimiter))
	}

	tokenAuth := jwtauth.New("HS256", []byte(cfg.Cookie.Secret), nil)
	portalHandle := portalapi.NewHandle(registry, connector, tokenAuth, opts...)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	server.R.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.FrontendUrl},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Route("/api/portal", portalHandle.Routes)
	})

	slog.Info("Portal ready",
		"base_url", cfg.BaseUrl,
		"backend", cfg.Backend.Kind,
		"data", cfg.Backend.DataBackend,
		"multi_role", cfg.Shell.MultiRole,
		"idle_timeout", idleTimeout,
		"max_shells", cfg.Shell.MaxShells)

	server.Run()
}

func newLogger() *slog.Logger {
	if pkgconfig.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:  true,
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
}

// newNotifier delivers one-time codes and welcome notices over SMTP, or only
// logs them when no mail host is configured.
func newNotifier(cfg pkgconfig.EmailConfig, logger *slog.Logger) (*notification.NotificationManager, error) {
	delivery := notification.WithLogDelivery(logger)
	if cfg.IsConfigured() {
		delivery = notification.WithSMTP(cfg.ToSMTPConfig())
	} else {
		slog.Warn("EMAIL_HOST not set, notices will only be logged")
	}
	return notification.NewNotificationManagerWithOptions(
		delivery,
		notification.WithOneTimeCodeTemplate(),
		notification.WithWelcomeTemplate(),
	)
}

func newConnector(cfg pkgconfig.PortalConfig, notifier *notification.NotificationManager, logger *slog.Logger) (backend.Connector, func(), error) {
	var connector backend.Connector
	switch cfg.Backend.Kind {
	case pkgconfig.BackendSupabase:
		sbConfig, err := cfg.Backend.ToSupabaseConfig()
		if err != nil {
			return nil, nil, err
		}
		project, err := supabase.NewProject(sbConfig, supabase.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		connector = project
	default:
		memConfig, err := cfg.Backend.ToMemoryConfig()
		if err != nil {
			return nil, nil, err
		}
		store := memory.NewStore(memConfig, notifier, memory.WithLogger(logger))
		if cfg.Backend.SeedAdminEmail != "" {
			if _, err := store.AddUser(cfg.Backend.SeedAdminEmail, cfg.Backend.SeedAdminPass, backend.Profile{
				PrimerNombre:   "Admin",
				PrimerApellido: "Portal",
				Rol:            "admin",
			}); err != nil {
				return nil, nil, err
			}
			slog.Info("Seeded admin account", "email", cfg.Backend.SeedAdminEmail)
		}
		connector = store
	}

	if cfg.Backend.DataBackend != pkgconfig.DataPostgres {
		return connector, func() {}, nil
	}

	dbConfig := cfg.Database.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		return nil, nil, err
	}
	store, err := postgres.NewStore(pool, postgres.WithLogger(logger))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.Connector{Connector: connector, Store: store}, pool.Close, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() {
	// Get the directory where the executable is located
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")

	// Also check current working directory
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}
