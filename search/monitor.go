package search

import (
	"log/slog"
	"time"

	"github.com/poiesic/pulse/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vector []float32)
	AfterQuery(results []core.SearchResult)
	Finish(hits []Hit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                   {}
func (n *noopMonitor) AfterEmbedding(_ []float32)       {}
func (n *noopMonitor) AfterQuery(_ []core.SearchResult) {}
func (n *noopMonitor) Finish(_ []Hit)                   {}

// LogMonitor reports each stage at debug level with the elapsed time.
type LogMonitor struct {
	logger  *slog.Logger
	started time.Time
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor. A nil logger falls back to slog.Default().
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search")}
}

func (m *LogMonitor) Start(query string) {
	m.started = time.Now()
	m.logger.Debug("search started", "query", query)
}

func (m *LogMonitor) AfterEmbedding(vector []float32) {
	m.logger.Debug("query embedded", "dims", len(vector), "elapsed", time.Since(m.started))
}

func (m *LogMonitor) AfterQuery(results []core.SearchResult) {
	m.logger.Debug("vector query done", "results", len(results), "elapsed", time.Since(m.started))
}

func (m *LogMonitor) Finish(hits []Hit) {
	m.logger.Debug("search finished", "hits", len(hits), "elapsed", time.Since(m.started))
}
