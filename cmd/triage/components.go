package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/config"
	"github.com/hyperjump/triage/internal/dispatch"
	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/guideline"
	"github.com/hyperjump/triage/internal/llm"
	"github.com/hyperjump/triage/internal/metrics"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/personal"
	"github.com/hyperjump/triage/internal/profile"
	"github.com/hyperjump/triage/internal/retrieval"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/internal/triage"
)

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	Cache       *guideline.Cache
	Profiles    *profile.Service
	Transcriber llm.Transcriber
	Metrics     *metrics.Metrics
	Pipeline    *triage.Pipeline
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func newEmbedder(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case "hash":
		inner = embedding.NewHashEmbedder(cfg.Dimensions)
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     config.APIKey(cfg.APIKeyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return embedding.WithCache(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// initializeStorage opens the database and embedder; enough for build-index and status.
func initializeStorage(cfg *config.Config) (storage.Storage, embedding.Embedder, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return store, embedder, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, embedder, err := initializeStorage(cfg)
	if err != nil {
		return nil, err
	}
	c := &Components{Storage: store, Embedder: embedder, Metrics: metrics.New(nil)}

	c.Cache = guideline.NewCache(store, cfg.Retrieval.IndexName, logger)
	c.Cache.OnLoad(func(err error) { c.Metrics.RecordIndexLoad(err == nil) })

	arena, err := personal.NewArena(cfg.Storage.PersonalIndexDir, embedder, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Profiles = profile.NewService(store, arena, logger)

	generator, err := llm.NewChatGenerator(llm.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      config.APIKey(cfg.LLM.APIKeyEnv),
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout(),
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	if cfg.Transcription.BaseURL != "" || config.APIKey(cfg.Transcription.APIKeyEnv) != "" {
		c.Transcriber = llm.NewAudioTranscriber(llm.AudioConfig{
			BaseURL: cfg.Transcription.BaseURL,
			APIKey:  config.APIKey(cfg.Transcription.APIKeyEnv),
			Model:   cfg.Transcription.Model,
			Timeout: time.Duration(cfg.Transcription.TimeoutSecs) * time.Second,
		})
	}

	dispatcher := dispatch.NewHTTPDispatcher(dispatch.HTTPConfig{
		URLs: map[models.Route]string{
			models.RoutePharmacy:  cfg.Dispatch.PharmacyURL,
			models.RouteCaretaker: cfg.Dispatch.CaretakerURL,
			models.RouteAmbulance: cfg.Dispatch.AmbulanceURL,
		},
		Timeout:    cfg.Dispatch.Timeout(),
		RetryCount: cfg.Dispatch.RetryCount,
	}, logger)

	c.Pipeline = triage.New(
		store,
		c.Cache,
		retrieval.NewEngine(c.Cache, embedder, logger),
		generator,
		dispatch.NewRouter(dispatcher, logger),
		c.Metrics,
		logger,
		triage.Options{TopK: cfg.Retrieval.TopK, Fallback: cfg.Decision.Fallback()},
	)
	return c, nil
}
