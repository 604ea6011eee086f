package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()

	a, err := m.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(context.Background(), "goodbye")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := DeterministicVector("some text", 16)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_CustomBehavior(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimensions = 4
	vectors, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 4)

	m.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("down")
	}
	_, err = m.EmbedText(context.Background(), "x")
	assert.Error(t, err)
	_, err = m.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.Error(t, err, "batch calls share the single-text behavior")

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedText(context.Background(), "x")
	assert.NoError(t, err)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Equal(t, MockModel, p.Model())
	assert.Equal(t, 2, p.TokenCounter().CountTokens("12345678"))
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.NoError(t, p.Close())
}
