// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vector, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: returns deterministic unit vectors based on a text hash
//   - MockTokenCounter: estimates four characters per token
//   - MockProvider: aggregates both and reports model "mock-embed"
package mock
