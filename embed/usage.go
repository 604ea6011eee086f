package embed

import "sync"

// Usage is a snapshot of cumulative embedding totals.
type Usage struct {
	Embedded int
	Failed   int
	Tokens   int
	Cost     float64
}

type usageCounter struct {
	mu sync.Mutex
	u  Usage
}

func (c *usageCounter) add(tokens int, cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.u.Embedded++
	c.u.Tokens += tokens
	c.u.Cost += cost
}

func (c *usageCounter) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.u.Failed++
}

func (c *usageCounter) snapshot() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.u
}
