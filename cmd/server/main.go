package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's bundled middlewares
	"github.com/rs/zerolog"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/config" // Internal config loader
	"github.com/iliyamo/donor-registry/internal/database"
	"github.com/iliyamo/donor-registry/internal/handler"
	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/queue"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/router" // Internal router setup
	"github.com/iliyamo/donor-registry/internal/service"
)

func main() {
	cfg := config.Load()           // Load environment config
	logger := config.NewLogger(cfg) // Service logger
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.BackendConfigured() {
		// keep serving: public pages fall back to defaults and data calls answer 503
		logger.Error().Msg("BACKEND_URL or BACKEND_ANON_KEY is not set; backend calls will fail")
	}

	var rowOpts []backend.Option
	if cfg.DataDriver == config.DriverMySQL {
		db, err := database.Open(ctx, database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db, logger); err != nil {
				return err
			}
		}
		store := backend.NewSQLStore(db)
		store.Register(repository.VerifyAdminRPC, repository.AdminProcedure())
		rowOpts = append(rowOpts, backend.WithRowStore(store))
		logger.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("rows served from mysql")
	}

	client, err := backend.New(cfg.BackendURL, cfg.BackendAnonKey, append(rowOpts, backend.WithLogger(logger))...)
	if err != nil {
		return err
	}
	unsubscribe := client.Auth.OnAuthStateChange(func(ev backend.AuthEvent, s *backend.Session) {
		e := logger.Debug().Str("event", string(ev))
		if s != nil {
			e = e.Str("user_id", s.User.ID)
		}
		e.Msg("auth state changed")
	})
	defer unsubscribe()

	// ---- infrastructure ----
	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}
	metrics := middleware.NewMetrics()
	cache := middleware.NewCache(config.LoadCacheConfig(), rdb, metrics, logger)
	rl := config.LoadRateLimitConfig()

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		events = service.AMQPPublisher{URL: cfg.RabbitURL, Log: logger}
		startConsumer(ctx, cfg, rowOpts, logger)
	}

	// ---- repositories ----
	donors := repository.NewDonorRepo(client)
	content := repository.NewContentRepo(client)
	notifications := repository.NewNotificationRepo(client)
	requests := repository.NewBloodRequestRepo(client)
	admins := repository.NewAdminRepo(client)

	pictures := handler.Pictures{Store: client.Storage, Bucket: cfg.StorageBucket, MaxBytes: cfg.MaxUploadBytes}

	// ---- HTTP ----
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	// the admin lockout keys on RealIP; never let a client pick it via X-Forwarded-For
	e.IPExtractor = echo.ExtractIPDirect()
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))
	e.Use(middleware.NewTokenBucket(rl, rdb, metrics, logger))
	authLimit := middleware.NewTokenBucket(rl.Auth(), rdb, metrics, logger)

	contentHandler := handler.NewContentHandler(content, cache)
	router.RegisterRoutes(e, client.Configured, metrics) // Register application routes
	router.RegisterAuth(e, handler.NewAuthHandler(client.Auth, donors, events, cache), client.Auth, authLimit)
	router.RegisterPublic(e, handler.NewDonorHandler(donors), contentHandler, handler.NewBloodRequestHandler(requests), cache)
	router.RegisterProfile(e, handler.NewProfileHandler(donors, pictures, events, cache), client.Auth)
	router.RegisterAdmin(e,
		&handler.AdminHandler{
			Admins:        admins,
			Guard:         service.NewLoginGuard(cfg.AdminMaxAttempts, cfg.AdminLockout),
			Donors:        donors,
			Notifications: notifications,
			Requests:      requests,
			Secret:        cfg.AdminJWTSecret,
			TTL:           cfg.AdminSessionTTL,
		},
		handler.NewAdminDonorHandler(donors, pictures, events, cache),
		contentHandler,
		cfg.AdminJWTSecret, time.Now, authLimit,
	)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("driver", cfg.DataDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// startConsumer turns donor events into admin notifications.  It writes
// with the service key when one is configured so row policies that hide
// the notifications table from the public key do not apply.
func startConsumer(ctx context.Context, cfg config.Config, rowOpts []backend.Option, logger zerolog.Logger) {
	key := cfg.BackendServiceKey
	if key == "" {
		key = cfg.BackendAnonKey
	}
	client, err := backend.New(cfg.BackendURL, key, append(rowOpts, backend.WithLogger(logger))...)
	if err != nil {
		logger.Error().Err(err).Msg("donor-consumer: backend client")
		return
	}
	handle := queue.NotificationHandler(repository.NewNotificationRepo(client))
	go func() {
		if err := queue.StartDonorConsumer(ctx, cfg.RabbitURL, handle, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("donor-consumer stopped")
		}
	}()
}

// bodyLimit leaves headroom above the picture size for multipart framing.
func bodyLimit(maxUpload int64) string {
	const mb = 1 << 20
	return strconv.FormatInt((maxUpload+mb-1)/mb+1, 10) + "M"
}
