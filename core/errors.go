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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPost indicates a RawPost failed validation.
	ErrInvalidPost = errors.New("invalid post")

	// ErrInvalidRecord indicates an IndexedRecord failed validation.
	ErrInvalidRecord = errors.New("invalid indexed record")

	// ErrInvalidInsight indicates an Insight failed validation.
	ErrInvalidInsight = errors.New("invalid insight")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates both title and body are empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingExternalID indicates the upstream post id is missing.
	ErrMissingExternalID = errors.New("external id cannot be empty")

	// ErrMissingContentID indicates an index record has no content id.
	ErrMissingContentID = errors.New("content id cannot be empty")

	// ErrMissingContentType indicates an index record has no content type.
	ErrMissingContentType = errors.New("content type cannot be empty")

	// ErrEmptyVector indicates an index record has no embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrInvalidInsightType indicates an unknown insight type.
	ErrInvalidInsightType = errors.New("invalid insight type")
)
