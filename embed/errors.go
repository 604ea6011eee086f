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

package embed

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrDimensionMismatch is returned when comparing vectors of different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector is returned when comparing an empty vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrEmptyText marks items with nothing to embed.
	ErrEmptyText = errors.New("no text to embed")

	// ErrEmptyEmbedding is returned when the service answers without a vector.
	ErrEmptyEmbedding = errors.New("embedding service returned an empty vector")

	// ErrBatchMismatch is returned when a batch call answers with a different
	// number of vectors than texts sent.
	ErrBatchMismatch = errors.New("embedding batch size mismatch")

	// ErrServiceUnavailable is returned when the circuit breaker has opened.
	// It aborts the whole stage.
	ErrServiceUnavailable = errors.New("embedding service unavailable")

	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid embedding option")
)
