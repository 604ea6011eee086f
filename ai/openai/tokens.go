package openai

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/pulse/ai"
)

// TokenCounter counts tokens with a tiktoken encoding. When the encoding
// cannot be loaded it falls back to ai.EstimateTokens.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var _ ai.TokenCounter = (*TokenCounter)(nil)

// NewTokenCounter loads the named encoding. It never fails; a missing
// encoding only downgrades the counter to an estimate.
func NewTokenCounter(encodingName string) *TokenCounter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		slog.Default().Warn("tiktoken encoding unavailable, estimating tokens",
			"component", "token-counter", "encoding", encodingName, "err", err)
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: enc}
}

// CountTokens returns the number of tokens in text.
func (c *TokenCounter) CountTokens(text string) int {
	if c.encoding == nil {
		return ai.EstimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Exact reports whether counts come from a real encoding.
func (c *TokenCounter) Exact() bool {
	return c.encoding != nil
}
