// Package embed produces vector embeddings for processed posts.
//
// A Generator walks its input in fixed-size batches with a pause between
// them. Each item is truncated to a character budget, sent through a retry
// policy with a per-call timeout, and counted for tokens and cost. Items that
// cannot be embedded are returned as fallbacks so the output always lines up
// with the input. A circuit breaker, a worker pool and a request rate limit
// are available as options.
package embed
