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

package source

import "errors"

var (
	// ErrInvalidQuery is returned by Query.Validate.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoTerms is returned when a query carries no usable search term.
	ErrNoTerms = errors.New("no search terms")

	// ErrAllTermsFailed is returned when every term of a query failed.
	// It is joined with the per-term errors.
	ErrAllTermsFailed = errors.New("all search terms failed")

	// ErrUnexpectedStatus is returned for non-200 upstream responses.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid source option")
)
