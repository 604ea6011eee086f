package core

import "time"

// StageCounts counts items at each pipeline stage.
type StageCounts struct {
	Scraped           int
	Processed         int
	Persisted         int
	Embedded          int
	EmbeddingFailures int
	Indexed           int
	IndexFailed       int
	IndexSkipped      int
}

// Add accumulates other into c.
func (c *StageCounts) Add(other StageCounts) {
	c.Scraped += other.Scraped
	c.Processed += other.Processed
	c.Persisted += other.Persisted
	c.Embedded += other.Embedded
	c.EmbeddingFailures += other.EmbeddingFailures
	c.Indexed += other.Indexed
	c.IndexFailed += other.IndexFailed
	c.IndexSkipped += other.IndexSkipped
}

// RunReport describes one completed pipeline run.
type RunReport struct {
	RunID      string
	ProductID  string
	Subreddit  string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     StageCounts
	Tokens     int
	Cost       float64
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
