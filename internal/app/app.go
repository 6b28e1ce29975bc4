// Package app wires configuration into a ready-to-serve Assistant.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"nutriguide/config"
	"nutriguide/internal/adapter/cache"
	"nutriguide/internal/adapter/dataset"
	"nutriguide/internal/adapter/embedding"
	"nutriguide/internal/adapter/fs"
	"nutriguide/internal/adapter/llm"
	"nutriguide/internal/adapter/memstore"
	"nutriguide/internal/adapter/retriever"
	"nutriguide/internal/adapter/store"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
	"nutriguide/internal/usecase"
)

// Options selects optional collaborators.
type Options struct {
	// WithGenerator builds the text-generation client. Commands that only
	// retrieve or render prompts leave it off and need no credential.
	WithGenerator bool
}

// App holds the wired components. There is exactly one Assistant per App.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Index     *memstore.MemoryIndex
	Embedder  port.Embedder
	Assistant *usecase.Assistant

	closers []io.Closer
}

// New builds every component from cfg. The knowledge base starts empty;
// call LoadDataset to populate it.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(opts.WithGenerator); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	emb, err := a.initEmbedder()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.Embedder = emb

	idx, err := memstore.NewMemoryIndex(cfg.Index.Dimension, cfg.Index.Metric)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	a.Index = idx

	var ret port.Retriever
	ret, err = retriever.NewSemanticRetriever(emb, idx, cfg.Retrieve.TopK)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	if cfg.Retrieve.CacheSize > 0 {
		ret = cache.NewCachedRetriever(ret, idx, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))
	}

	var gen port.Generator
	if opts.WithGenerator {
		g, err := llm.NewOpenAIGenerator(cfg.Generation.APIKeyEnv, cfg.Generation.Model, cfg.Generation.BaseURL,
			cfg.Generation.Temperature, cfg.Generation.Timeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		gen = g
	}
	composer, err := usecase.NewComposer(gen)
	if err != nil {
		a.Close()
		return nil, err
	}

	ingestor := usecase.NewIngestor(emb, cfg.Embedding.BatchSize, cfg.Embedding.Workers, cfg.Embedding.Timeout,
		logger.Named("ingest"))

	a.Assistant, err = usecase.NewAssistant(idx, ret, ingestor, composer, usecase.AssistantOptions{
		TopK:          cfg.Retrieve.TopK,
		Threshold:     cfg.Retrieve.Threshold,
		MaxConcurrent: cfg.Generation.MaxConcurrent,
		Logger:        logger.Named("assistant"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("components initialized",
		zap.String("embedder", emb.ModelName()),
		zap.Int("dimension", cfg.Index.Dimension),
		zap.Float64("threshold", cfg.Retrieve.Threshold),
		zap.Bool("generator", gen != nil),
	)
	return a, nil
}

func (a *App) initEmbedder() (port.Embedder, error) {
	cfg := a.Config
	var emb port.Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		e, err := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL,
			cfg.Index.Dimension, cfg.Embedding.Timeout)
		if err != nil {
			return nil, err
		}
		emb = e
	default:
		emb = embedding.NewHashEmbedder(cfg.Index.Dimension)
	}

	if cfg.Embedding.CachePath == "" {
		return emb, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Embedding.CachePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c, err := store.NewBoltEmbeddingCache(cfg.Embedding.CachePath, emb.ModelName(), emb.Dimension())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c)
	a.Logger.Debug("embedding cache enabled", zap.String("path", cfg.Embedding.CachePath))
	return embedding.NewCachedEmbedder(emb, c), nil
}

// ReadDataset reads the configured dataset sources and returns the groups
// and the files they came from.
func (a *App) ReadDataset() ([]domain.FAQ, []string, error) {
	ds := a.Config.Dataset
	if ds.Dir != "" {
		return dataset.LoadDir(fs.NewWalker(ds.Includes, nil), ds.Dir)
	}
	groups, err := dataset.LoadFile(ds.Path)
	if err != nil {
		return nil, nil, err
	}
	return groups, []string{ds.Path}, nil
}

// LoadDataset reads the configured sources into the empty knowledge base.
func (a *App) LoadDataset(ctx context.Context, progress usecase.ProgressFunc) (domain.Revision, error) {
	groups, files, err := a.ReadDataset()
	if err != nil {
		return domain.Revision{}, err
	}
	rev, err := a.Assistant.Load(ctx, groups, progress)
	if err != nil {
		return domain.Revision{}, err
	}
	a.Logger.Info("dataset loaded", zap.Strings("files", files), zap.String("revision", rev.ID))
	return rev, nil
}

// ReloadFile replaces the knowledge base with the contents of path. A bad
// file leaves the current base in place.
func (a *App) ReloadFile(ctx context.Context, path string) (domain.Revision, error) {
	groups, err := dataset.LoadFile(path)
	if err != nil {
		return domain.Revision{}, err
	}
	return a.Assistant.Replace(ctx, groups, nil)
}

// Close releases the embedding cache, if any.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
