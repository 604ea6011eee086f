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

// Package ai provides abstractions for the AI services used by pulse.
//
// The package defines three interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - TokenCounter: counts billable tokens for cost accounting
//   - AIProvider: aggregates the services behind one lifecycle
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Constructors in ai/openai return interfaces; constructors in ai/mock
// return concrete types so tests can inspect call counts.
package ai
