package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/api"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/backoff"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/cache"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/client"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/config"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/dispatch"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/phone"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/repo"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/service"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/telemetry"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("dispatcher exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		return err
	}
	store := repo.NewSQLStore(db, cfg.Database.Driver)

	scheme := phone.Scheme{CountryCode: cfg.Phone.CountryCode, NationalLength: cfg.Phone.NationalLength}

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithRunner(worker.NewRunner(logger)),
		dispatch.WithRecipientSource(store),
		dispatch.WithMessageStore(store),
	}

	deps := api.Deps{
		Messages:   store,
		Recipients: store,
		Statuses:   service.NewStatusUpdater(store, scheme, logger),
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rc := cache.NewRedisCache(rdb, cfg.Redis.TTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, sent cache writes will fail until it recovers", "addr", cfg.Redis.Address, "err", err)
		}
		opts = append(opts, dispatch.WithSentCache(rc))
		deps.Sent = rc
	}

	d := dispatch.New(newChannel(cfg.Channel, logger), dispatchConfig(cfg, scheme), opts...)
	deps.Dispatcher = d

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(api.NewHandler(deps))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatcher listening",
			"addr", cfg.Server.Address,
			"db_driver", cfg.Database.Driver,
			"provider", cfg.Channel.Provider,
			"channel_configured", d.Configured(),
			"redis", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	if err := d.Close(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "err", err)
	}
	return nil
}

// newChannel returns nil when the provider credentials are missing, so the
// dispatcher reports itself as unconfigured instead of failing at startup.
func newChannel(cfg config.ChannelConfig, logger *slog.Logger) client.Channel {
	if !cfg.Configured() {
		logger.Warn("messaging channel not configured, bulk sends will be rejected", "provider", cfg.Provider)
		return nil
	}

	opts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithRateLimit(cfg.RatePerSecond),
	}

	var ch client.Channel
	switch cfg.Provider {
	case config.ProviderWebhook:
		ch = client.NewWebhookClient(cfg.WebhookURL, opts...)
	default:
		ch = client.NewMetaClient(cfg.MetaAPIBase, cfg.PhoneNumberID, cfg.AccessToken, opts...)
	}
	return telemetry.InstrumentChannel(cfg.Provider, ch)
}

func dispatchConfig(cfg *config.Config, scheme phone.Scheme) dispatch.Config {
	return dispatch.Config{
		DelayMin:        cfg.Dispatch.DelayMin,
		DelayMax:        cfg.Dispatch.DelayMax,
		ContentMax:      cfg.Dispatch.ContentMax,
		ContactedStatus: cfg.Dispatch.ContactedStatus,
		PersistTimeout:  cfg.Dispatch.PersistTimeout,
		Scheme:          scheme,
		Policy: backoff.Policy{
			MaxAttempts: cfg.Dispatch.MaxAttempts,
			Base:        cfg.Dispatch.BackoffBase,
			Unit:        cfg.Dispatch.BackoffUnit,
		},
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
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
