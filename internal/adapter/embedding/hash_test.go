package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"what is diabetes", "what is diabetes"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], DefaultDimension)

	assert.Equal(t, vecs[0], vecs[1])

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestHashEmbedder_NormalizesBeforeHashing(t *testing.T) {
	e := NewHashEmbedder(DefaultDimension)

	vecs, err := e.Embed(context.Background(), []string{"What is diabetes?", "what is diabetes"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
}

func TestHashEmbedder_UnrelatedTextScoresLow(t *testing.T) {
	e := NewHashEmbedder(DefaultDimension)

	vecs, err := e.Embed(context.Background(), []string{
		"what is diabetes",
		"what is the capital of france",
		"is diabetes a chronic disease",
	})
	require.NoError(t, err)

	assert.Less(t, cosine(vecs[0], vecs[1]), 0.5)
	assert.Greater(t, cosine(vecs[0], vecs[2]), cosine(vecs[0], vecs[1]))
}

func TestHashEmbedder_StopwordOnlyText(t *testing.T) {
	e := NewHashEmbedder(16)

	vecs, err := e.Embed(context.Background(), []string{"what is it", ""})
	require.NoError(t, err)

	var nonZero bool
	for _, v := range vecs[0] {
		if v != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero, "stopword-only text should still embed")

	for _, v := range vecs[1] {
		assert.Zero(t, v)
	}
}

func TestHashEmbedder_RespectsCancellation(t *testing.T) {
	e := NewHashEmbedder(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"anything"})
	assert.ErrorIs(t, err, context.Canceled)
}
