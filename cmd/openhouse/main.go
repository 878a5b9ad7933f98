package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/openhouse-followup/internal/api"
	"github.com/LeventeLantos/openhouse-followup/internal/cache"
	"github.com/LeventeLantos/openhouse-followup/internal/client"
	"github.com/LeventeLantos/openhouse-followup/internal/config"
	"github.com/LeventeLantos/openhouse-followup/internal/content"
	"github.com/LeventeLantos/openhouse-followup/internal/cron"
	"github.com/LeventeLantos/openhouse-followup/internal/dispatch"
	"github.com/LeventeLantos/openhouse-followup/internal/followup"
	"github.com/LeventeLantos/openhouse-followup/internal/leads"
	"github.com/LeventeLantos/openhouse-followup/internal/notify"
	"github.com/LeventeLantos/openhouse-followup/internal/repo"
	"github.com/LeventeLantos/openhouse-followup/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("openhouse stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	receipts, closeCache := newCache(ctx, cfg.Redis)
	defer closeCache()

	notifier, closeNotifier := newNotifier(cfg.RabbitMQ)
	defer closeNotifier()

	sms := newSMSSender(cfg.SMS)
	email, err := newEmailSender(cfg.Email)
	if err != nil {
		return err
	}

	gen, err := content.NewGenerator(cfg.Server.BaseURL)
	if err != nil {
		return err
	}

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize)

	dispatcher := dispatch.New(store, store, store, gen, sms, email,
		dispatch.WithConcurrency(cfg.Scheduler.Concurrency),
		dispatch.WithContentMax(cfg.SMS.ContentMax),
		dispatch.WithCache(receipts),
	)

	runner, err := cron.New("dispatch", cfg.Scheduler.Interval, func(ctx context.Context) error {
		_, err := dispatcher.ProcessDueMessages(ctx, time.Now().UTC(), cfg.Scheduler.BatchSize)
		return err
	})
	if err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		runner.Start()
	}

	svc := leads.NewService(leads.Deps{
		Events:   store,
		Leads:    store,
		Messages: store,
		FollowUp: followup.NewService(store, store, store, gen, sms, email),
		Content:  gen,
		SMS:      sms,
		Email:    email,
		Notifier: notifier,
		Tasks:    pool,
	})

	handler := api.NewHandler(api.Deps{
		Scheduler:  runner,
		Dispatcher: dispatcher,
		Messages:   store,
		Leads:      svc,
		Receipts:   receipts,
		CronSecret: cfg.Server.CronSecret,
		BatchSize:  cfg.Scheduler.BatchSize,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("openhouse starting",
			"addr", cfg.Server.Address,
			"store", cfg.Database.Store,
			"scheduler", cfg.Scheduler.Enabled,
			"interval", cfg.Scheduler.Interval.String(),
			"batch", cfg.Scheduler.BatchSize,
			"sms_provider", cfg.SMS.Provider,
			"email_provider", cfg.Email.Provider,
			"redis", cfg.Redis.Enabled,
			"rabbitmq", cfg.RabbitMQ.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	runner.Stop()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker pool shutdown", "error", err)
	}

	slog.Info("openhouse stopped")
	return serveErr
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repo.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return repo.NewMemoryStore(), func() {}, nil
	}

	db, err := repo.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewPostgresStore(db), func() { closeDB(db) }, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("close postgres", "error", err)
	}
}

// newCache falls back to a no-op cache when redis is unset or unreachable.
func newCache(ctx context.Context, cfg config.RedisConfig) (cache.MessageCache, func()) {
	if !cfg.Enabled {
		return cache.Noop{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, sent-message cache disabled", "addr", cfg.Address, "error", err)
		_ = rdb.Close()
		return cache.Noop{}, func() {}
	}

	return cache.NewRedisCache(rdb, cfg.TTL), func() { _ = rdb.Close() }
}

func newNotifier(cfg config.RabbitMQConfig) (notify.Notifier, func()) {
	if !cfg.Enabled {
		return notify.Noop{}, func() {}
	}

	n, err := notify.DialRabbitNotifier(cfg.URL)
	if err != nil {
		slog.Warn("rabbitmq unavailable, real-time notifications disabled", "error", err)
		return notify.Noop{}, func() {}
	}
	return n, func() { _ = n.Close() }
}

func newSMSSender(cfg config.SMSConfig) client.SMSSender {
	if cfg.Provider == config.SMSProviderWebhook {
		opts := []client.WebhookOption{client.WithFrom(cfg.From)}
		if cfg.APIKey != "" {
			opts = append(opts, client.WithAPIKey(cfg.APIKey))
		}
		return client.NewWebhookSMSClient(cfg.WebhookURL, opts...)
	}
	return client.NewLogSMSClient(cfg.From)
}

func newEmailSender(cfg config.EmailConfig) (client.EmailSender, error) {
	switch cfg.Provider {
	case config.EmailProviderSMTP:
		return client.NewSMTPEmailClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.From), nil
	case config.EmailProviderMailgun:
		return client.NewMailgunEmailClient(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.From), nil
	case config.EmailProviderSES:
		c, err := client.NewSESEmailClient(cfg.SES.Region, cfg.From)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		return c, nil
	}
	return client.NewLogEmailClient(cfg.From), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
