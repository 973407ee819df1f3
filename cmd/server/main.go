package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offerboard/backend/internal/api"
	"github.com/offerboard/backend/internal/auth"
	"github.com/offerboard/backend/internal/config"
	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/health"
	"github.com/offerboard/backend/internal/logger"
	"github.com/offerboard/backend/internal/mail"
	"github.com/offerboard/backend/internal/metrics"
	"github.com/offerboard/backend/internal/offer"
	"github.com/offerboard/backend/internal/store"
	"github.com/offerboard/backend/internal/user"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error(context.Background(), "failed to load configuration", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{Output: os.Stdout, Level: logger.ParseLevel(cfg.LogLevel)})
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", err, logger.Fields{"driver": cfg.StoreDriver})
		os.Exit(1)
	}

	sender, outbox, redisClient, err := openSender(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to set up mail sender", err, logger.Fields{"driver": cfg.MailDriver})
		os.Exit(1)
	}
	sender = mail.WithRecorder(mail.WithRetry(sender, apperrors.MailRetryConfig()), metrics.Default())

	tokens := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	login := auth.NewLoginMachine(auth.LoginConfig{
		Users:       st.Users(),
		Tokens:      tokens,
		Sender:      sender,
		AllowBypass: cfg.AllowTestBypass,
		Logger:      log,
	})
	if cfg.AllowTestBypass {
		log.Warn(ctx, "test login bypass is enabled")
	}

	hc := &health.CheckerConfig{
		Store:       st,
		StoreDriver: cfg.StoreDriver,
		Redis:       redisClient,
		Version:     version,
	}
	if outbox != nil {
		hc.Outbox = outbox
	}
	checker := health.NewChecker(hc)

	router := api.NewRouter(api.Config{
		Users: user.NewHandlers(user.Config{
			Users:    st.Users(),
			Login:    login,
			Tokens:   tokens,
			Recorder: metrics.Default(),
			Logger:   log,
		}),
		Offers:  offer.NewHandlers(st.Offers(), metrics.Default(), log),
		Tokens:  tokens,
		Health:  health.NewHandler(checker),
		Metrics: metrics.Default(),
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server started", logger.Fields{
			"host":         cfg.Host,
			"addr":         srv.Addr,
			"env":          cfg.Env,
			"store_driver": cfg.StoreDriver,
			"mail_driver":  cfg.MailDriver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error(context.Background(), "server failed", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "graceful shutdown failed", err)
		exitCode = 1
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn(shutdownCtx, "failed to close redis client", logger.Fields{"error": err.Error()})
		}
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "failed to close store", err)
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := store.OpenPostgres(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db)
		if err := pg.RunMigrations(connectCtx); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		mongo, err := store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return mongo, nil
	}
}

// openSender returns the login code sender and, for the redis driver, the
// outbox and client backing it so health checks can inspect them.
func openSender(ctx context.Context, cfg *config.Config, log *logger.Logger) (mail.CodeSender, *mail.RedisOutbox, *redis.Client, error) {
	if cfg.MailDriver != config.MailDriverRedis {
		return mail.NewLogSender(log), nil, nil, nil
	}
	client, err := mail.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	outbox := mail.NewRedisOutbox(client, cfg.MailQueue)
	return outbox, outbox, client, nil
}
