package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

// ErrAlreadyLoaded is returned by Load when the index already holds documents.
var ErrAlreadyLoaded = errors.New("knowledge base already loaded")

// AssistantOptions tunes routing and generation.
type AssistantOptions struct {
	TopK          int
	Threshold     float64
	MaxConcurrent int
	Logger        *zap.Logger
}

// Stats describes the knowledge base being served.
type Stats struct {
	Revision   domain.Revision `json:"revision"`
	Documents  int             `json:"documents"`
	Dimension  int             `json:"dimension"`
	Generation uint64          `json:"generation"`
	TopK       int             `json:"top_k"`
	Threshold  float64         `json:"threshold"`
}

// Assistant answers questions from the knowledge base and swaps the base
// without readers ever observing a partial state. The index swaps its
// contents atomically, so queries take no Assistant lock.
type Assistant struct {
	// mu guards revision.
	mu       sync.RWMutex
	revision domain.Revision

	// writeMu serializes Load and Replace.
	writeMu sync.Mutex

	index     port.Index
	retriever port.Retriever
	ingestor  *Ingestor
	composer  *Composer

	sem       chan struct{}
	topK      int
	threshold float64
	logger    *zap.Logger
}

func NewAssistant(index port.Index, retriever port.Retriever, ingestor *Ingestor, composer *Composer, opts AssistantOptions) (*Assistant, error) {
	if index == nil || retriever == nil || ingestor == nil || composer == nil {
		return nil, fmt.Errorf("assistant: index, retriever, ingestor and composer are required")
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %.3f outside [0,1]", domain.ErrConfig, opts.Threshold)
	}
	if opts.TopK <= 0 {
		opts.TopK = 1
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Assistant{
		index:     index,
		retriever: retriever,
		ingestor:  ingestor,
		composer:  composer,
		sem:       make(chan struct{}, opts.MaxConcurrent),
		topK:      opts.TopK,
		threshold: opts.Threshold,
		logger:    opts.Logger,
	}, nil
}

// Route retrieves and decides without generating.
func (a *Assistant) Route(ctx context.Context, question string) (domain.Decision, []domain.QueryResult, error) {
	results, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		return domain.Decision{}, nil, fmt.Errorf("retrieve: %w", err)
	}
	return Decide(results, a.threshold), results, nil
}

// Prompt returns the prompt Ask would send for question.
func (a *Assistant) Prompt(ctx context.Context, question string) (string, domain.Decision, error) {
	d, _, err := a.Route(ctx, question)
	if err != nil {
		return "", d, err
	}
	prompt, _, err := a.composer.RenderPrompt(question, d)
	return prompt, d, err
}

// Ask answers a question. An empty knowledge base is not an error; the
// fallback branch runs.
func (a *Assistant) Ask(ctx context.Context, question string) (domain.Response, error) {
	start := time.Now()

	d, _, err := a.Route(ctx, question)
	if err != nil {
		return domain.Response{}, err
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
	defer func() { <-a.sem }()

	resp, err := a.composer.Compose(ctx, question, d)
	if err != nil {
		a.logger.Warn("answer failed", zap.Bool("sufficient", d.Sufficient), zap.Error(err))
		return domain.Response{}, err
	}

	fields := []zap.Field{
		zap.Bool("source_used", resp.SourceUsed),
		zap.Duration("took", time.Since(start)),
	}
	if d.Sufficient {
		fields = append(fields, zap.Int("doc_id", d.Best.Document.ID), zap.Float64("score", d.Best.Score))
	}
	a.logger.Debug("answered", fields...)
	return resp, nil
}

// Load populates an empty knowledge base.
func (a *Assistant) Load(ctx context.Context, groups []domain.FAQ, progress ProgressFunc) (domain.Revision, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	entries, err := a.ingestor.Prepare(ctx, groups, progress)
	if err != nil {
		return domain.Revision{}, err
	}

	if a.index.Count() > 0 {
		return domain.Revision{}, ErrAlreadyLoaded
	}
	if err := a.index.Upsert(entries); err != nil {
		return domain.Revision{}, fmt.Errorf("upsert: %w", err)
	}
	return a.commit(len(groups), len(entries), "loaded"), nil
}

// Replace validates and embeds the new groups first, then swaps the
// knowledge base in one step. Any failure leaves the prior base in place.
func (a *Assistant) Replace(ctx context.Context, groups []domain.FAQ, progress ProgressFunc) (domain.Revision, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	entries, err := a.ingestor.Prepare(ctx, groups, progress)
	if err != nil {
		return domain.Revision{}, err
	}

	if err := a.index.Swap(entries); err != nil {
		return domain.Revision{}, fmt.Errorf("swap: %w", err)
	}
	return a.commit(len(groups), len(entries), "replaced"), nil
}

// commit records a new revision. Caller holds a.writeMu.
func (a *Assistant) commit(groups, docs int, verb string) domain.Revision {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revision = domain.Revision{
		ID:        uuid.NewString(),
		Documents: docs,
		Groups:    groups,
		LoadedAt:  time.Now().UTC(),
	}
	a.logger.Info("knowledge base "+verb,
		zap.String("revision", a.revision.ID),
		zap.Int("groups", groups),
		zap.Int("documents", docs),
	)
	return a.revision
}

// Ready reports whether the knowledge base holds at least one document.
func (a *Assistant) Ready() bool {
	return a.index.Count() > 0
}

func (a *Assistant) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Revision:   a.revision,
		Documents:  a.index.Count(),
		Dimension:  a.index.Dimension(),
		Generation: a.index.Generation(),
		TopK:       a.topK,
		Threshold:  a.threshold,
	}
}

// Documents returns the served documents ordered by id.
func (a *Assistant) Documents() []domain.Document {
	return a.index.Documents()
}
