package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"

	"nutriguide/internal/adapter/embedding"
	"nutriguide/internal/adapter/memstore"
	"nutriguide/internal/adapter/retriever"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

const diabetesAnswer = "Focus on non-starchy vegetables, lean proteins, whole grains and healthy fats, and watch portion sizes."

func nutritionFAQ() []domain.FAQ {
	return []domain.FAQ{
		{
			Questions: []string{"What should I eat if I have diabetes?", "What foods are good for diabetics?"},
			Answer:    diabetesAnswer,
		},
		{
			Questions: []string{"Can I eat fruit with diabetes?"},
			Answer:    "Yes. Whole fruits in moderate portions fit a diabetic diet.",
		},
	}
}

// mockGenerator is a testify mock of port.Generator.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) ModelName() string { return "mock" }

// echoGenerator returns the prompt it was given.
type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (string, error) { return prompt, nil }
func (echoGenerator) ModelName() string                                        { return "echo" }

// failingEmbedder fails every call after the first n.
type failingEmbedder struct {
	port.Embedder
	allowed int32
	calls   atomic.Int32
}

func (f *failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) > f.allowed {
		return nil, errors.New("embedding service unavailable")
	}
	return f.Embedder.Embed(ctx, texts)
}

// flakyIndex fails the next Upsert or Swap when failNext is set.
type flakyIndex struct {
	*memstore.MemoryIndex
	failNext atomic.Bool
}

func (f *flakyIndex) Upsert(entries []port.IndexEntry) error {
	if f.failNext.CompareAndSwap(true, false) {
		return errors.New("upsert rejected")
	}
	return f.MemoryIndex.Upsert(entries)
}

func (f *flakyIndex) Swap(entries []port.IndexEntry) error {
	if f.failNext.CompareAndSwap(true, false) {
		return errors.New("swap rejected")
	}
	return f.MemoryIndex.Swap(entries)
}

// gatedEmbedder blocks any call embedding gatedText until release is closed.
// entered receives once per blocked call.
type gatedEmbedder struct {
	port.Embedder
	gatedText string
	entered   chan struct{}
	release   chan struct{}
}

func newGatedEmbedder(gatedText string) *gatedEmbedder {
	return &gatedEmbedder{
		Embedder:  embedding.NewHashEmbedder(embedding.DefaultDimension),
		gatedText: gatedText,
		entered:   make(chan struct{}, 8),
		release:   make(chan struct{}),
	}
}

func (g *gatedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if t == g.gatedText {
			g.entered <- struct{}{}
			select {
			case <-g.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			break
		}
	}
	return g.Embedder.Embed(ctx, texts)
}

type fixture struct {
	index     *flakyIndex
	embedder  port.Embedder
	assistant *Assistant
}

func newFixture(t testing.TB, gen port.Generator, emb port.Embedder) *fixture {
	t.Helper()
	if emb == nil {
		emb = embedding.NewHashEmbedder(embedding.DefaultDimension)
	}
	mem, err := memstore.NewMemoryIndex(emb.Dimension(), domain.MetricCosine)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	idx := &flakyIndex{MemoryIndex: mem}
	ret, err := retriever.NewSemanticRetriever(emb, idx, 1)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	composer, err := NewComposer(gen)
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	a, err := NewAssistant(idx, ret, NewIngestor(emb, 2, 2, 0, nil), composer, AssistantOptions{Threshold: 0.75})
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	return &fixture{index: idx, embedder: emb, assistant: a}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
