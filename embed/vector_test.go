package embed

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)

	neg := []float32{-0.3, 1.2, -4.5, -0.01}
	sim, err = CosineSimilarity(v, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	sim, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarity_Errors(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = CosineSimilarity(nil, []float32{1})
	assert.ErrorIs(t, err, ErrEmptyVector)
}

func TestTruncate(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "hello world", Truncate("hello world", 100))
	})

	t.Run("cuts at word boundary", func(t *testing.T) {
		text := strings.Repeat("word ", 1400)
		require.Equal(t, 7000, len(text))

		out := Truncate(text, 6000)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), 6000)
		assert.True(t, strings.HasSuffix(out, "word"))
		assert.True(t, strings.HasPrefix(text, out))
	})

	t.Run("hard cut without whitespace", func(t *testing.T) {
		out := Truncate(strings.Repeat("x", 50), 10)
		assert.Equal(t, strings.Repeat("x", 10), out)
	})

	t.Run("whitespace only far back", func(t *testing.T) {
		text := "ab " + strings.Repeat("y", 20)
		assert.Equal(t, text[:10], Truncate(text, 10))
	})

	t.Run("counts runes", func(t *testing.T) {
		out := Truncate(strings.Repeat("é", 20), 5)
		assert.Equal(t, 5, utf8.RuneCountInString(out))
	})
}
