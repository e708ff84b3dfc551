package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/database"
	"github.com/rickgao/widget-market/internal/livefeed"
	"github.com/rickgao/widget-market/internal/marketfeed"
	"github.com/rickgao/widget-market/internal/model"
	"github.com/rickgao/widget-market/internal/poller"
	"github.com/rickgao/widget-market/internal/pricestore"
	"github.com/rickgao/widget-market/internal/router"
	"github.com/rickgao/widget-market/internal/version"
	"github.com/rickgao/widget-market/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func newRecorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recorder",
		Short: "Record market transactions and price samples to PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateRecorder(); err != nil {
				return err
			}
			return runRecorder(cmd.Context(), a.cfg, a.logger)
		},
	}
}

func runRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting recorder", version.Attrs()...)

	good := model.Good(cfg.Market.Good)

	client := pricestore.NewClient(cfg.Redis)
	defer client.Close()
	store := pricestore.New(client)

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis, err)
	}

	logger.Info("connecting to database",
		"host", cfg.Recorder.Database.Host,
		"port", cfg.Recorder.Database.Port,
		"database", cfg.Recorder.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Recorder.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	logger.Info("database ready")

	sub, err := marketfeed.Subscribe(ctx, client, cfg.Market.Topic, cfg.Market.ChannelSize)
	if err != nil {
		return err
	}
	defer sub.Close()

	rcfg := router.DefaultConfig()
	rcfg.Good = good
	rcfg.JournalBufferSize = cfg.Recorder.BufferSize
	rt := router.NewRouter(rcfg, sub, logger)
	buffers := rt.Buffers()

	txWriter := writer.NewTransactionWriter(cfg.Recorder.Writer, buffers.Journal, pool, logger)
	sampleWriter := writer.NewSampleWriter(pool, logger)
	hub := livefeed.NewHub(livefeed.DefaultConfig(), buffers.Live, logger)
	sampler := poller.New(poller.Config{
		Goods:        []model.Good{good},
		Interval:     cfg.Recorder.Sampler.Interval,
		Timeout:      cfg.Recorder.Sampler.Timeout,
		Concurrency:  1,
		DefaultPrice: cfg.Market.DefaultPrice,
	}, store, sampleWriter, logger)

	// Consumers first, so nothing routed is left waiting.
	for _, start := range []func(context.Context) error{
		txWriter.Start, hub.Start, rt.Start, sampler.Start,
	} {
		if err := start(ctx); err != nil {
			return err
		}
	}

	handler := newRecorderHandler(
		map[string]pinger{"redis": store, "database": pool},
		func() any {
			return recorderStats{
				Router:       rt.Stats(),
				Transactions: txWriter.Stats(),
				Samples:      sampleWriter.Stats(),
				Sampler:      sampler.Stats(),
				Live:         hub.Stats(),
			}
		},
		hub,
	)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Recorder.HTTP.Port),
		Handler: handler,
	}

	go func() {
		logger.Info("starting http server", "port", cfg.Recorder.HTTP.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("recorder running",
		"topic", cfg.Market.Topic,
		"good", good,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Recorder.HTTP.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	server.Shutdown(shutdownCtx)
	sampler.Stop(shutdownCtx)
	rt.Stop(shutdownCtx)
	hub.Stop(shutdownCtx)
	txWriter.Stop(shutdownCtx)

	stats := rt.Stats()
	logger.Info("recorder stopped",
		"received", stats.MessagesReceived,
		"routed", stats.MessagesRouted,
		"parse_errors", stats.ParseErrors,
		"inserted", txWriter.Stats().Inserts,
	)
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type recorderStats struct {
	Router       router.Stats   `json:"router"`
	Transactions writer.Metrics `json:"transactions"`
	Samples      writer.Metrics `json:"samples"`
	Sampler      poller.Stats   `json:"sampler"`
	Live         livefeed.Stats `json:"live"`
}

// newRecorderHandler serves /health, /stats and the /ws live feed.
func newRecorderHandler(deps map[string]pinger, stats func() any, live http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components[name] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
				continue
			}
			health.Components[name] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats())
	})

	mux.Handle("/ws", live)
	return mux
}
