// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Embeddings go through langchaingo's OpenAI client, so any compatible server
// (OpenAI, Ollama, LocalAI, vLLM) works. Token accounting uses tiktoken.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithAPIKey(os.Getenv("PULSE_EMBEDDING_API_KEY")),
//	    ai.WithEmbeddingModel("text-embedding-3-small"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "sample text")
//	tokens := provider.TokenCounter().CountTokens("sample text")
package openai
