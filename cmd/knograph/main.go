package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knograph/knograph/internal/config"
	"github.com/knograph/knograph/internal/engine"
	"github.com/knograph/knograph/internal/logging"
	"github.com/knograph/knograph/internal/registry"
	"github.com/knograph/knograph/internal/server"
	"github.com/knograph/knograph/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		TimeFormat: cfg.LogFormat,
		File:       cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %v", err)
	}
	defer log.Close()

	log.Info("starting %s %s (%s)", cfg.AppName, cfg.Version, cfg.Environment)

	// The engine graph is shared with the HTTP layer for visualization,
	// so it lives outside the lazily-built engine.
	graph := engine.NewGraph()

	knowledge := service.NewKnowledge(service.Options{
		WorkingDir:    cfg.WorkingDir,
		InsertTimeout: time.Duration(cfg.InsertTimeout) * time.Second,
		QueryTimeout:  time.Duration(cfg.QueryTimeout) * time.Second,
	}, engineFactory(cfg, graph, log), log)
	defer knowledge.Finalize()

	documents := registry.NewDocuments()
	knowledgeBases := registry.NewKnowledgeBases()

	srv := server.New(cfg, knowledge, documents, knowledgeBases, graph, log)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %v", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error: %v", err)
	}
	log.Info("shutdown complete")
	return nil
}

// engineFactory defers engine construction until the first upload or
// query so a missing credential surfaces as a retryable failure, not a
// crash at startup.
func engineFactory(cfg *config.Config, graph *engine.Graph, log logging.Logger) service.Factory {
	return func() (service.Engine, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}

		llm, embedder, err := engine.NewOpenAI(engine.OpenAIOptions{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
		})
		if err != nil {
			return nil, err
		}

		var cache engine.QueryCache = engine.NoopCache{}
		if cfg.EnableQueryCache {
			redisCache, err := engine.NewRedisCache(engine.RedisCacheOptions{
				URL: cfg.RedisURL,
				TTL: time.Duration(cfg.CacheTTL) * time.Second,
			})
			if err != nil {
				log.Warn("query cache disabled, cannot connect to redis: %v", err)
			} else {
				cache = redisCache
			}
		}

		return engine.NewWithGraph(engine.Config{
			WorkingDir:   cfg.WorkingDir,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		}, llm, embedder, cache, graph, log)
	}
}
