package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digestloop/core/config"
	"github.com/digestloop/core/internal/crypto"
	"github.com/digestloop/core/internal/deliver"
	"github.com/digestloop/core/internal/executor"
	"github.com/digestloop/core/internal/fetch"
	"github.com/digestloop/core/internal/health"
	"github.com/digestloop/core/internal/infrastructure/postgres"
	ctxlog "github.com/digestloop/core/internal/log"
	"github.com/digestloop/core/internal/metrics"
	"github.com/digestloop/core/internal/quota"
	"github.com/digestloop/core/internal/reaper"
	"github.com/digestloop/core/internal/summarize"
	"github.com/digestloop/core/internal/tick"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	metrics.ProcessStartTime.Set(float64(time.Now().Unix()))
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	tenants := postgres.NewTenantStore(pool)
	repos := postgres.NewRepositoryStore(pool)
	authors := postgres.NewAuthorStore(pool)
	entries := postgres.NewMonitoringStore(pool)
	runs := postgres.NewRunStore(pool)

	sealer, err := crypto.NewSealer(mustDecodeKey(cfg.AESMasterKeyBase64))
	if err != nil {
		stop()
		log.Fatalf("crypto: %v", err)
	}

	gate := quota.NewGate(tenants, logger)

	fetcherFor := func(credential string) fetch.Client {
		return fetch.NewGitHubClient(cfg.VCSToken).WithCredential(credential)
	}

	pacer := summarize.NewPacer(time.Duration(cfg.LLMMinIntervalMillis) * time.Millisecond)
	summarizer := summarize.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, pacer)

	sender, err := deliver.NewSender(cfg.Env, cfg.SMTPProvider, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, logger)
	if err != nil {
		stop()
		log.Fatalf("deliver: %v", err)
	}

	exec := executor.New(
		tenants,
		repos,
		authors,
		runs,
		entries,
		gate,
		fetcherFor,
		summarizer,
		sender,
		sealer,
		executor.Config{
			FetchTimeout:   time.Duration(cfg.FetchTimeoutSec) * time.Second,
			SummaryTimeout: time.Duration(cfg.SummaryTimeoutSec) * time.Second,
			DeliverTimeout: time.Duration(cfg.DeliverTimeoutSec) * time.Second,
			DefaultWindow:  time.Duration(cfg.FetchWindowHours) * time.Hour,
		},
		logger,
	)

	tickLoop := tick.NewLoop(entries, exec, logger, time.Duration(cfg.TickIntervalSec)*time.Second)
	go tickLoop.Run(ctx)

	runReaper := reaper.New(
		runs,
		entries,
		time.Duration(cfg.ReaperIntervalSec)*time.Second,
		time.Duration(cfg.RunGraceMinutes)*time.Minute,
		logger,
	)
	go runReaper.Run(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	metrics.ShutdownsTotal.Inc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker shut down")
}

func mustDecodeKey(b64 string) []byte {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		log.Fatalf("decode AES_MASTER_KEY_BASE64: %v", err)
	}
	return key
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
