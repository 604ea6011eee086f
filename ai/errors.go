package ai

import "errors"

// ErrRejectedInput marks a request the embedding service refused because of
// its input (HTTP 4xx other than timeouts and rate limits). Retrying the same
// input cannot succeed, and the service itself is healthy.
var ErrRejectedInput = errors.New("input rejected by embedding service")
