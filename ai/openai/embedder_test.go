package openai

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/pulse/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func newEmbeddingServer(t *testing.T, status int) (*httptest.Server, *[]embeddingRequest) {
	t.Helper()
	var seen []embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i + 1), 0, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(host),
		ai.WithAPIKey("sk-test"),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithTimeout(5*time.Second),
	)
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	srv, seen := newEmbeddingServer(t, http.StatusOK)

	embedder, err := NewEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(t.Context(), []string{"first\ntext", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{2, 0, 0}, vectors[1])

	require.NotEmpty(t, *seen)
	assert.Equal(t, "test-embed", (*seen)[0].Model)
	assert.Equal(t, "first text", (*seen)[0].Input[0], "newlines are stripped")
}

func TestEmbedder_EmbedText(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusOK)

	embedder, err := NewEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	vector, err := embedder.EmbedText(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vector)
}

func TestEmbedder_ServerError(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusInternalServerError)

	embedder, err := NewEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedText(t.Context(), "hello")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrRejectedInput)
}

func TestEmbedder_RejectedInput(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusBadRequest)

	embedder, err := NewEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(t.Context(), []string{"hello"})
	assert.ErrorIs(t, err, ai.ErrRejectedInput)
}

func TestClassify(t *testing.T) {
	for msg, rejected := range map[string]bool{
		"API returned unexpected status code: 400: bad input": true,
		"API returned unexpected status code: 413":            true,
		"API returned unexpected status code: 429: slow down": false,
		"API returned unexpected status code: 408":            false,
		"API returned unexpected status code: 503":            false,
		"dial tcp: connection refused":                        false,
	} {
		err := classify(errors.New(msg))
		assert.Equal(t, rejected, errors.Is(err, ai.ErrRejectedInput), msg)
	}
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.EmbeddingModel = ""
	_, err := NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	srv, _ := newEmbeddingServer(t, http.StatusOK)

	provider, err := NewProvider(testConfig(srv.URL))
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "test-embed", provider.Model())
	assert.NotNil(t, provider.Embedder())
	assert.Greater(t, provider.TokenCounter().CountTokens("hello world"), 0)
}

func TestTokenCounter_FallsBackToEstimate(t *testing.T) {
	counter := NewTokenCounter("no_such_encoding")
	assert.False(t, counter.Exact())
	assert.Equal(t, ai.EstimateTokens("sixteen chars!!!"), counter.CountTokens("sixteen chars!!!"))
}
