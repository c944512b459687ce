package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/natours/natours/internal/app"
	"github.com/natours/natours/internal/auth"
	jobmetrics "github.com/natours/natours/internal/jobs"
	"github.com/natours/natours/internal/mail"
	"github.com/natours/natours/internal/observability"
	"github.com/natours/natours/internal/platform/cache"
	"github.com/natours/natours/internal/platform/db"
	"github.com/natours/natours/internal/users"
	"github.com/natours/natours/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("natours", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, db.PoolConfig{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	cacheCfg := cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, cacheCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	notifier, closeNotifier, err := newNotifier(cfg, cacheCfg, jobMetrics)
	if err != nil {
		return err
	}
	defer closeNotifier()

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTExpiresIn})
	if err != nil {
		return err
	}
	transport := auth.Transport{CookieName: cfg.JWTCookieName, Secure: cfg.IsProduction()}

	userRepo := users.NewPGRepository(pool)
	authService, err := auth.NewService(
		userRepo,
		auth.NewBcryptHasher(cfg.BcryptCost, cfg.HashConcurrency),
		tokens,
		auth.NewResetTokens(cfg.ResetTokenTTL),
		notifier,
		auth.Config{
			PasswordChangeSkew: cfg.PasswordChangeSkew,
			StoreTimeout:       cfg.StoreTimeout,
			MailTimeout:        cfg.MailTimeout,
			PublicBaseURL:      cfg.PublicBaseURL,
		},
		auth.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	authenticator := auth.NewAuthenticator(logger, tokens, userRepo, transport,
		auth.WithRejectionHook(metrics.RecordAuthRejection),
		auth.WithStoreTimeout(cfg.StoreTimeout),
	)

	inspector := asynq.NewInspector(cacheCfg.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router, err := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: authenticator,
		AuthHandler:   auth.NewHandler(logger, authService, transport),
		UsersHandler:  users.NewHandler(logger, users.NewService(userRepo)),
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
		Readiness: []app.ReadinessCheck{
			{Name: "postgres", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("mail_mode", cfg.MailMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newNotifier picks the delivery channel for account emails. SMTP mode
// sends inline so a relay failure reaches the caller; queue mode only
// guarantees the task was enqueued.
func newNotifier(cfg *app.Config, cacheCfg cache.Config, metrics *jobmetrics.Metrics) (auth.Notifier, func(), error) {
	switch cfg.MailMode {
	case app.MailModeQueue:
		client := jobs.NewClient(cacheCfg.AsynqOpt())
		return jobs.NewQueueNotifier(client, metrics), func() { _ = client.Close() }, nil
	default:
		sender, err := newSender(cfg, metrics)
		if err != nil {
			return nil, nil, err
		}
		return auth.NotifierFunc(func(ctx context.Context, msg auth.Message) error {
			return sender.Send(ctx, mail.Message(msg))
		}), func() {}, nil
	}
}

func newSender(cfg *app.Config, metrics *jobmetrics.Metrics) (*mail.Sender, error) {
	return mail.NewSender(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.MailTimeout,
	}, metrics)
}
