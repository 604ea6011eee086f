package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter reports how many tokens the embedding model will bill for a text.
type TokenCounter interface {
	CountTokens(text string) int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// TokenCounter returns the token accounting service.
	TokenCounter() TokenCounter

	// Model returns the embedding model identifier.
	Model() string

	// Close releases resources held by the provider and its services.
	Close() error
}

// EstimateTokens is the fallback token count: one token per four characters,
// with a floor of one for non-empty text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
