package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"nutriguide/internal/adapter/analyzer"
	"nutriguide/internal/adapter/dataset"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

const (
	defaultBatchSize = 64
	defaultWorkers   = 4
)

// ProgressFunc is called with the number of embedded entries so far and the
// total after every finished batch.
type ProgressFunc func(done, total int)

// Ingestor turns FAQ groups into index entries: validate, expand one entry
// per question, normalize, embed.
type Ingestor struct {
	embedder  port.Embedder
	batchSize int
	workers   int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewIngestor(embedder port.Embedder, batchSize, workers int, timeout time.Duration, logger *zap.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		embedder:  embedder,
		batchSize: batchSize,
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Expand flattens groups into one entry per question. Questions are
// normalized, answers are kept verbatim. Vectors are left nil.
func Expand(groups []domain.FAQ) []port.IndexEntry {
	var n int
	for _, g := range groups {
		n += len(g.Questions)
	}
	entries := make([]port.IndexEntry, 0, n)
	for _, g := range groups {
		for _, q := range g.Questions {
			entries = append(entries, port.IndexEntry{
				Question: analyzer.Normalize(q),
				Answer:   g.Answer,
			})
		}
	}
	return entries
}

// Prepare validates the groups and returns fully embedded entries. Nothing
// outside the returned slice is touched, so a failure here never affects
// the served knowledge base.
func (u *Ingestor) Prepare(ctx context.Context, groups []domain.FAQ, progress ProgressFunc) ([]port.IndexEntry, error) {
	if err := dataset.Validate(groups); err != nil {
		return nil, err
	}

	entries := Expand(groups)
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()
	if err := u.embed(ctx, entries, progress); err != nil {
		return nil, err
	}

	u.logger.Debug("embedded dataset",
		zap.Int("groups", len(groups)),
		zap.Int("entries", len(entries)),
		zap.String("model", u.embedder.ModelName()),
		zap.Duration("took", time.Since(start)),
	)
	return entries, nil
}

func (u *Ingestor) embed(ctx context.Context, entries []port.IndexEntry, progress ProgressFunc) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batch struct{ start, end int }
	var batches []batch
	for i := 0; i < len(entries); i += u.batchSize {
		batches = append(batches, batch{start: i, end: min(i+u.batchSize, len(entries))})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	sem := make(chan struct{}, u.workers)

	for _, b := range batches {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()

			texts := make([]string, 0, b.end-b.start)
			for _, e := range entries[b.start:b.end] {
				texts = append(texts, e.Question)
			}

			vectors, err := u.embedder.Embed(ctx, texts)
			if err == nil && len(vectors) != len(texts) {
				err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed entries %d-%d: %w", b.start, b.end-1, err)
					cancel()
				}
				return
			}
			for i, v := range vectors {
				entries[b.start+i].Vector = v
			}
			done += len(vectors)
			if progress != nil {
				progress(done, len(entries))
			}
		}(b)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
