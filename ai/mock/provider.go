// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import (
	"sync/atomic"

	"github.com/poiesic/pulse/ai"
)

// MockModel is the model name reported by MockProvider.
const MockModel = "mock-embed"

// MockTokenCounter estimates four characters per token, or delegates to CountFunc.
type MockTokenCounter struct {
	CountFunc func(text string) int
}

// CountTokens implements ai.TokenCounter.
func (c *MockTokenCounter) CountTokens(text string) int {
	if c.CountFunc != nil {
		return c.CountFunc(text)
	}
	return ai.EstimateTokens(text)
}

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder *MockEmbedder
	counter  *MockTokenCounter
	closed   atomic.Bool
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder() to access the concrete embedder for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		counter:  &MockTokenCounter{},
	}
}

// NewMockProviderWithEmbedder creates a mock provider around a custom embedder.
func NewMockProviderWithEmbedder(embedder *MockEmbedder) *MockProvider {
	return &MockProvider{
		embedder: embedder,
		counter:  &MockTokenCounter{},
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// TokenCounter returns the mock token counter.
func (p *MockProvider) TokenCounter() ai.TokenCounter {
	return p.counter
}

// Model returns MockModel.
func (p *MockProvider) Model() string {
	return MockModel
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (p *MockProvider) Closed() bool {
	return p.closed.Load()
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetTokenCounter returns the underlying mock token counter.
func (p *MockProvider) GetTokenCounter() *MockTokenCounter {
	return p.counter
}
