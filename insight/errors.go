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

package insight

import "errors"

var (
	// ErrPostRepositoryRequired is returned when an engine is built without posts.
	ErrPostRepositoryRequired = errors.New("post repository required")

	// ErrInvalidTimeframe is returned for timeframes that do not parse.
	ErrInvalidTimeframe = errors.New("invalid timeframe")

	// ErrProductRequired is returned when no product id is given.
	ErrProductRequired = errors.New("product id required")

	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid insight option")
)
