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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/pulse/ai"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/retry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize        = 100
	DefaultBatchDelay       = time.Second
	DefaultMaxChars         = 6000
	DefaultCallTimeout      = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = time.Minute

	// DefaultUnitPrice is USD per 1000 tokens for text-embedding-3-small.
	DefaultUnitPrice = 0.00002
)

// Generator turns processed items into embedded items.
type Generator struct {
	embedder ai.Embedder
	counter  ai.TokenCounter
	model    string

	batchSize   int
	batchDelay  time.Duration
	maxChars    int
	policy      retry.Policy
	callTimeout time.Duration
	unitPrice   float64

	concurrency      int
	pool             *ants.Pool
	limiter          *rate.Limiter
	breakerThreshold uint32
	breakerTimeout   time.Duration
	breaker          *gobreaker.CircuitBreaker

	usage  usageCounter
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// WithBatchSize sets how many items are embedded between delays.
func WithBatchSize(size int) Option {
	return func(g *Generator) error {
		if size <= 0 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, size)
		}
		g.batchSize = size
		return nil
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(d time.Duration) Option {
	return func(g *Generator) error {
		if d < 0 {
			return fmt.Errorf("%w: batch delay %s", ErrInvalidOption, d)
		}
		g.batchDelay = d
		return nil
	}
}

// WithMaxChars sets the truncation budget in characters.
func WithMaxChars(n int) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return fmt.Errorf("%w: max chars %d", ErrInvalidOption, n)
		}
		g.maxChars = n
		return nil
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Generator) error {
		if p.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		g.policy = p
		return nil
	}
}

// WithCallTimeout bounds each embedding call.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Generator) error {
		if d <= 0 {
			return fmt.Errorf("%w: call timeout %s", ErrInvalidOption, d)
		}
		g.callTimeout = d
		return nil
	}
}

// WithUnitPrice sets the price per 1000 tokens used for cost accounting.
func WithUnitPrice(price float64) Option {
	return func(g *Generator) error {
		if price < 0 {
			return fmt.Errorf("%w: unit price %f", ErrInvalidOption, price)
		}
		g.unitPrice = price
		return nil
	}
}

// WithConcurrency embeds up to n items of a batch at once using a worker pool.
// n <= 1 keeps embedding sequential.
func WithConcurrency(n int) Option {
	return func(g *Generator) error {
		g.concurrency = n
		return nil
	}
}

// WithRateLimit caps embedding requests per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(g *Generator) error {
		if rps < 0 {
			return fmt.Errorf("%w: rate %f", ErrInvalidOption, rps)
		}
		if rps == 0 {
			g.limiter = nil
			return nil
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

// WithBreaker opens the circuit after threshold consecutive items fail for
// service reasons (transport errors, 5xx, timeouts) and keeps it open for
// timeout. Each item counts once however often it is retried. A zero
// threshold disables the breaker.
func WithBreaker(threshold int, timeout time.Duration) Option {
	return func(g *Generator) error {
		if threshold < 0 || timeout < 0 {
			return fmt.Errorf("%w: breaker %d/%s", ErrInvalidOption, threshold, timeout)
		}
		g.breakerThreshold = uint32(threshold)
		if timeout > 0 {
			g.breakerTimeout = timeout
		}
		return nil
	}
}

// NewGenerator creates a Generator backed by provider.
func NewGenerator(provider ai.AIProvider, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	g := &Generator{
		embedder:         provider.Embedder(),
		counter:          provider.TokenCounter(),
		model:            provider.Model(),
		batchSize:        DefaultBatchSize,
		batchDelay:       DefaultBatchDelay,
		maxChars:         DefaultMaxChars,
		policy:           retry.DefaultPolicy(),
		callTimeout:      DefaultCallTimeout,
		unitPrice:        DefaultUnitPrice,
		breakerThreshold: DefaultBreakerThreshold,
		breakerTimeout:   DefaultBreakerTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "embed")

	if g.concurrency > 1 {
		pool, err := ants.NewPool(g.concurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		g.pool = pool
	}

	if g.breakerThreshold > 0 {
		threshold := g.breakerThreshold
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embedding-service",
			MaxRequests: 1,
			Timeout:     g.breakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			IsSuccessful: serviceHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return g, nil
}

// Model returns the embedding model name recorded on each item.
func (g *Generator) Model() string {
	return g.model
}

// Release frees the worker pool, if any.
func (g *Generator) Release() {
	if g.pool != nil {
		g.pool.Release()
	}
}

// Usage returns cumulative token and cost totals.
func (g *Generator) Usage() Usage {
	return g.usage.snapshot()
}

// Embed returns exactly one EmbeddedItem per input, in input order. Items that
// cannot be embedded become fallbacks with EmbedError set. The error is non-nil
// only when ctx is done or the embedding service is unavailable.
func (g *Generator) Embed(ctx context.Context, items []core.ProcessedItem) ([]core.EmbeddedItem, error) {
	out := make([]core.EmbeddedItem, len(items))

	for start := 0; start < len(items); start += g.batchSize {
		if start > 0 && g.batchDelay > 0 {
			timer := time.NewTimer(g.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+g.batchSize, len(items))
		if err := g.embedBatch(ctx, items[start:end], out[start:end]); err != nil {
			return nil, err
		}
		g.logger.Debug("embedded batch", "start", start, "end", end, "total", len(items))
	}

	return out, nil
}

// embedBatch sends the batch's embeddable texts in one call. When that call
// fails, or leaves an item without a vector, the affected items are embedded
// one at a time so a single bad input only costs its own item.
func (g *Generator) embedBatch(ctx context.Context, batch []core.ProcessedItem, out []core.EmbeddedItem) error {
	var (
		pending []int
		texts   []string
	)
	for i := range batch {
		out[i] = core.EmbeddedItem{ProcessedItem: batch[i], Model: g.model}
		text, reason := g.prepare(&batch[i])
		if reason != "" {
			out[i].EmbedError = reason
			g.usage.fail()
			continue
		}
		pending = append(pending, i)
		texts = append(texts, text)
	}
	if len(pending) == 0 {
		return nil
	}

	vectors, err := g.callBatch(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, ErrServiceUnavailable) {
			return err
		}
		g.logger.Debug("batch embedding failed, embedding items individually", "count", len(texts), "err", err)
	}

	var single []int
	for j, i := range pending {
		if err != nil || len(vectors[j]) == 0 {
			single = append(single, i)
			continue
		}
		g.succeed(&out[i], texts[j], vectors[j])
	}
	if len(single) == 0 {
		return nil
	}
	return g.embedEach(ctx, batch, out, single)
}

// embedEach embeds the listed items individually, on the worker pool when
// one is configured.
func (g *Generator) embedEach(ctx context.Context, batch []core.ProcessedItem, out []core.EmbeddedItem, indexes []int) error {
	if g.pool == nil {
		for _, i := range indexes {
			if err := g.embedOne(ctx, &batch[i], &out[i]); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		fatalErr error
	)
	run := func(i int) {
		if err := g.embedOne(ctx, &batch[i], &out[i]); err != nil {
			once.Do(func() { fatalErr = err })
		}
	}
	for _, i := range indexes {
		wg.Add(1)
		if err := g.pool.Submit(func() {
			defer wg.Done()
			run(i)
		}); err != nil {
			wg.Done()
			g.logger.Debug("worker pool rejected task, embedding inline", "err", err)
			run(i)
		}
	}
	wg.Wait()
	return fatalErr
}

// prepare returns the text to embed, or the reason the item is a fallback.
func (g *Generator) prepare(item *core.ProcessedItem) (string, string) {
	if item.Failed() {
		return "", "not embedded: " + item.Err
	}
	text := Truncate(item.CleanedText, g.maxChars)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText.Error()
	}
	return text, ""
}

func (g *Generator) succeed(res *core.EmbeddedItem, text string, vec []float32) {
	tokens := g.counter.CountTokens(text)
	cost := float64(tokens) / 1000 * g.unitPrice
	res.Vector = vec
	res.Tokens = tokens
	res.Cost = cost
	res.Success = true
	res.EmbedError = ""
	g.usage.add(tokens, cost)
}

// embedOne never fails for item-level problems; a non-nil error aborts the stage.
func (g *Generator) embedOne(ctx context.Context, item *core.ProcessedItem, res *core.EmbeddedItem) error {
	text, _ := g.prepare(item)
	vec, err := g.call(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, ErrServiceUnavailable) {
			return err
		}
		g.logger.Warn("embedding failed", "external_id", item.ExternalID, "err", err)
		res.EmbedError = err.Error()
		g.usage.fail()
		return nil
	}
	g.succeed(res, text, vec)
	return nil
}

// EmbedQuery embeds a single search query. Unlike Embed, failures are returned.
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(strings.TrimSpace(text), g.maxChars)
	if text == "" {
		return nil, ErrEmptyText
	}
	vec, err := g.call(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}

// call embeds one text. The breaker sees the whole retried call once.
func (g *Generator) call(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.guard(func() error {
		return retry.Do(ctx, g.policy, func(ctx context.Context) error {
			v, err := attempt(ctx, g, func(ctx context.Context) ([]float32, error) {
				return g.embedder.EmbedText(ctx, text)
			})
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return ErrEmptyEmbedding
			}
			vec = v
			return nil
		})
	})
	return vec, err
}

// callBatch embeds texts in one request. It succeeds only when the service
// answers with one vector per text.
func (g *Generator) callBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := g.guard(func() error {
		return retry.Do(ctx, g.policy, func(ctx context.Context) error {
			v, err := attempt(ctx, g, func(ctx context.Context) ([][]float32, error) {
				return g.embedder.EmbedTexts(ctx, texts)
			})
			if err != nil {
				return err
			}
			if len(v) != len(texts) {
				return retry.Permanent(fmt.Errorf("%w: got %d vectors for %d texts", ErrBatchMismatch, len(v), len(texts)))
			}
			vectors = v
			return nil
		})
	})
	return vectors, err
}

// attempt runs one rate-limited, time-bounded request. Rejected input is
// not retried.
func attempt[T any](ctx context.Context, g *Generator, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, retry.Permanent(err)
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	v, err := fn(callCtx)
	if errors.Is(err, ai.ErrRejectedInput) {
		return zero, retry.Permanent(err)
	}
	return v, err
}

// guard runs fn through the circuit breaker. Only failures that point at the
// service count toward opening it.
func (g *Generator) guard(fn func() error) error {
	if g.breaker == nil {
		return fn()
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return err
}

// serviceHealthy reports whether err leaves the embedding service in good
// standing: success, cancellation or a problem with one input.
func serviceHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ai.ErrRejectedInput) ||
		errors.Is(err, ErrEmptyEmbedding) ||
		errors.Is(err, ErrBatchMismatch)
}
