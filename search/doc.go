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

// Package search answers free-text queries against the vector index.
//
// A query is embedded with the same generator used for posts, matched with
// the index writer's similarity search, and optionally joined back to the
// persisted posts. Hits are always ordered by descending similarity; a
// verbatim flag marks hits whose text contains every content word of the
// query, using the normalizer's tokenizer and stopwords.
package search
