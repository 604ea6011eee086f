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

// Package storage defines the persistence interfaces used by pulse.
//
// Three kinds of data are stored: processed posts with their annotations
// (PostRepository), generated insights (InsightRepository) and embedding
// vectors (VectorStore). CheckpointRepository lets batch jobs resume.
//
// Backends live in subpackages:
//
//   - storage/badger: embedded BadgerDB, implements every interface
//   - storage/chromem: chromem-go collection, implements VectorStore
//   - storage/postgres: PostgreSQL with pgvector through bun, implements
//     PostRepository, InsightRepository and VectorStore
//
// All writes are upserts keyed by natural ids, so replaying a run never
// duplicates data.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
