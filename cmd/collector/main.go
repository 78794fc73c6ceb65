package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/htpot/collector/internal/core/config"
	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/core/server"
	"github.com/htpot/collector/internal/cache/redisstore"
	"github.com/htpot/collector/internal/geo"
	"github.com/htpot/collector/internal/hotness/expdecay"
	"github.com/htpot/collector/internal/ingest"
	"github.com/htpot/collector/internal/logger"
	"github.com/htpot/collector/internal/metrics"
	"github.com/htpot/collector/internal/query"
	"github.com/htpot/collector/internal/scoring"
	kafkapub "github.com/htpot/collector/internal/streaming/kafka"
	"github.com/htpot/collector/internal/store/postgres"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "collector",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting collector", "addr", cfg.Addr, "version", Version)

	sup, err := scoring.LoadSupervised(cfg.Models.Supervised)
	if err != nil {
		appLog.Error("failed to load supervised model", "err", err, "path", cfg.Models.Supervised)
		return 2
	}
	unsup, err := scoring.LoadUnsupervised(cfg.Models.Unsupervised)
	if err != nil {
		appLog.Error("failed to load unsupervised model", "err", err, "path", cfg.Models.Unsupervised)
		return 2
	}
	sec, err := scoring.LoadSecondary(cfg.Models.Secondary)
	if err != nil {
		appLog.Error("failed to load secondary model", "err", err, "path", cfg.Models.Secondary)
		return 2
	}
	modelsLoaded := true

	ensemble := scoring.NewEnsemble(scoring.Config{
		Weights: scoring.Weights{
			Supervised:   cfg.Weights.Supervised,
			Unsupervised: cfg.Weights.Unsupervised,
			Secondary:    cfg.Weights.Secondary,
		},
		Bands: scoring.BandThresholds{
			Low:    cfg.Bands.Low,
			Medium: cfg.Bands.Medium,
			High:   cfg.Bands.High,
		},
		IndicatorPaths: cfg.IndicatorPaths,
		IndicatorActs:  cfg.IndicatorActs,
		ScoreFloor:     cfg.ScoreFloor,
	}, sup, unsup, sec)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := postgres.Open(ctx, cfg.DBPath)
	if err != nil {
		appLog.Error("failed to open event store", "err", err)
		return 3
	}
	defer st.Close()

	var redisCli *redisstore.Client
	if cfg.RedisAddr != "" {
		redisCli, err = redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Warn("redis unavailable, geo enrichment will run L1-only", "err", err)
			redisCli = nil
		} else {
			defer redisCli.Close()
		}
	}

	enricher := geo.NewHTTPEnricher(appLog, geo.Config{
		UpstreamURL:      cfg.Geo.UpstreamURL,
		APIKey:           cfg.Geo.APIKey,
		Timeout:          cfg.GeoTimeout(),
		Concurrency:      int64(cfg.Geo.Concurrency),
		CacheSize:        cfg.Geo.CacheSize,
		CachePositiveTTL: cfg.Geo.CachePositiveTTL,
		CacheNegativeTTL: cfg.Geo.CacheNegativeTTL,
	}, redisCli)

	hotnessTracker := expdecay.New(cfg.HotnessHalfLife)

	var publisher ingest.Publisher
	if cfg.KafkaEnabled {
		kp, err := kafkapub.NewPublisher(appLog, kafkapub.Config{
			Enabled: true,
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			appLog.Warn("kafka publisher unavailable, running store-only", "err", err)
		} else {
			publisher = kp
			defer kp.Close()
		}
	}

	ingestHandler := ingest.NewHandler(appLog, enricher, ensemble, st, hotnessTracker, publisher, ingest.Config{
		RequestDeadline:       cfg.Deadline(),
		BackpressureHighWater: cfg.BackpressureHWM,
		RecentCacheSize:       8192,
	})
	queryHandlers := query.NewHandlers(appLog, st)

	reporter := &collectorHealth{store: st, enricher: enricher, modelsLoaded: modelsLoaded}

	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.MetricsAddr,
			Path:    cfg.MetricsPath,
			Build:   metrics.BuildInfo{Version: Version},
		})
		observability.Init(p.Registerer(), true)

		mux := http.NewServeMux()
		mux.Handle(cfg.MetricsPath, p.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Printf("metrics: listening on %s%s", cfg.MetricsAddr, cfg.MetricsPath)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server exited: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics: shutdown error: %v", err)
			}
		}()
	} else {
		observability.Init(nil, false)
	}

	deps := server.Deps{
		Ingest:       ingestHandler,
		Query:        queryHandlers,
		HealthReport: reporter,
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

type collectorHealth struct {
	store        interface{ Ping(context.Context) error }
	enricher     interface{ CacheSize() int }
	modelsLoaded bool
}

func (h *collectorHealth) StoreReachable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.store.Ping(ctx) == nil
}

func (h *collectorHealth) ModelsLoaded() bool { return h.modelsLoaded }

func (h *collectorHealth) EnrichmentCacheSize() int { return h.enricher.CacheSize() }

func (h *collectorHealth) ErrorCounts() map[string]int64 { return nil }
