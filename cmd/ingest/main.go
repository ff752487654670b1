package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/cg-market-etl/internal/alert"
	"github.com/rickgao/cg-market-etl/internal/api"
	"github.com/rickgao/cg-market-etl/internal/archive"
	"github.com/rickgao/cg-market-etl/internal/config"
	"github.com/rickgao/cg-market-etl/internal/database"
	"github.com/rickgao/cg-market-etl/internal/metrics"
	"github.com/rickgao/cg-market-etl/internal/pipeline"
	"github.com/rickgao/cg-market-etl/internal/schema"
	"github.com/rickgao/cg-market-etl/internal/transform"
	"github.com/rickgao/cg-market-etl/internal/version"
	"github.com/rickgao/cg-market-etl/internal/writer"
)

const (
	configEnv         = "CG_ETL_CONFIG"
	defaultConfigPath = "configs/etl.yaml"
)

func main() {
	configPath := os.Getenv(configEnv)
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		slog.Error("failed to load config", "config", configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting ingest",
		version.Attr(),
		"config", configPath,
		"instance_id", cfg.Instance.ID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ingest finished")
}

func run(ctx context.Context, cfg *config.ETLConfig, logger *slog.Logger) error {
	recorder := metrics.NewRecorder()

	// Alerts
	notifier, closeNotifier := newNotifier(cfg, logger)
	dispatcher := alert.NewDispatcher(notifier, logger)
	defer func() {
		if err := dispatcher.Wait(); err != nil {
			logger.Warn("some alerts were not delivered", "error", err)
		}
		sent, failed := dispatcher.Stats()
		logger.Debug("alert dispatcher drained", "sent", sent, "failed", failed)
		closeNotifier()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Sink.Host,
		"port", cfg.Database.Sink.Port,
		"database", cfg.Database.Sink.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Sink)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Create API client
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), cfg.API.RetryBackoff),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateWindow),
		api.WithPaging(cfg.API.VsCurrency, cfg.API.PerPage, cfg.API.MaxPages),
		api.WithObserver(recorder),
	)

	opts := []pipeline.Option{pipeline.WithRecorder(recorder)}
	if cfg.Archive.Enabled() {
		archiver, err := newArchiver(ctx, cfg.Archive, logger)
		if err != nil {
			logger.Warn("raw archive disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithArchiver(archiver))
		}
	}

	sink := writer.NewMarketWriter(pool, logger)

	p := pipeline.New(
		pipeline.Config{
			MarketsPath:    cfg.API.MarketsPath,
			PipelineConfig: cfg.Pipeline,
		},
		apiClient,
		schema.NewValidator(dispatcher, cfg.API.MarketsPath, logger),
		transform.NewNormalizer(logger),
		sink,
		logger,
		opts...,
	)

	_, runErr := p.Run(ctx)

	stats := sink.Stats()
	logger.Debug("sink stats",
		"appends", stats.Appends,
		"inserts", stats.Inserts,
		"errors", stats.Errors,
	)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, pushCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer pushCancel()
		if err := recorder.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, cfg.Instance.ID); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}

	if runErr != nil {
		var fetchErr *api.FetchError
		if errors.As(runErr, &fetchErr) {
			logger.Error("coingecko request failed",
				"status", fetchErr.StatusCode,
				"url", fetchErr.URL,
			)
		}
		dispatcher.Notify(ctx, alert.Alert{
			Subject: fmt.Sprintf("[cg-market-etl] run failed on %s", cfg.Instance.ID),
			Body:    runErr.Error(),
		})
		return runErr
	}

	return nil
}

// newNotifier builds the alert delivery chain: SMTP when enabled, otherwise
// the log, optionally throttled through Redis. The returned func releases the
// Redis client and must run after the dispatcher has drained.
func newNotifier(cfg *config.ETLConfig, logger *slog.Logger) (alert.Notifier, func()) {
	var notifier alert.Notifier = alert.LogNotifier{Logger: logger}
	if cfg.Alerts.Enabled {
		notifier = alert.NewSMTPNotifier(alert.SMTPConfig{
			Host:     cfg.Alerts.SMTPHost,
			Port:     cfg.Alerts.SMTPPort,
			Username: cfg.Alerts.Username,
			Password: cfg.Alerts.Password,
			From:     cfg.Alerts.From,
			To:       cfg.Alerts.To,
		})
	}

	if cfg.Cache.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		notifier = alert.NewThrottled(notifier, rdb, cfg.Alerts.Throttle, logger)
		return notifier, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}
	}

	return notifier, func() {}
}

func newArchiver(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (*archive.Archiver, error) {
	a, err := archive.New(archive.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
		Prefix:    cfg.Prefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := a.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
