package embedder

import (
	"sync"
	"time"

	"manifold/internal/config"
)

type cbState int

const (
	cbClosed cbState = iota
	cbOpen
	cbHalfOpen
)

// circuitBreaker opens once, within a sampling window, at least
// minThroughput calls have completed and the failure ratio meets or exceeds
// failureRatio. It closes again (half-open probe) after breakDuration.
type circuitBreaker struct {
	mu              sync.Mutex
	state           cbState
	failureRatio    float64
	minThroughput   int
	samplingWindow  time.Duration
	breakDuration   time.Duration
	windowStart     time.Time
	successes       int
	failures        int
	openedAt        time.Time
}

func newCircuitBreaker(cfg config.EmbeddingConfig) *circuitBreaker {
	return &circuitBreaker{
		state:          cbClosed,
		failureRatio:   cfg.CircuitFailureRatio,
		minThroughput:  cfg.CircuitMinThroughput,
		samplingWindow: time.Duration(cfg.CircuitSamplingSec) * time.Second,
		breakDuration:  time.Duration(cfg.CircuitBreakSec) * time.Second,
		windowStart:    time.Now(),
	}
}

// allow reports whether a call may proceed, transitioning Open -> HalfOpen
// once the break duration has elapsed.
func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case cbOpen:
		if time.Since(c.openedAt) >= c.breakDuration {
			c.state = cbHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (c *circuitBreaker) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == cbHalfOpen {
		c.reset()
		return
	}
	c.rollWindow()
	c.successes++
}

func (c *circuitBreaker) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == cbHalfOpen {
		c.trip()
		return
	}
	c.rollWindow()
	c.failures++
	total := c.successes + c.failures
	if total >= c.minThroughput && float64(c.failures)/float64(total) >= c.failureRatio {
		c.trip()
	}
}

func (c *circuitBreaker) trip() {
	c.state = cbOpen
	c.openedAt = time.Now()
	c.successes, c.failures = 0, 0
}

func (c *circuitBreaker) reset() {
	c.state = cbClosed
	c.successes, c.failures = 0, 0
	c.windowStart = time.Now()
}

func (c *circuitBreaker) rollWindow() {
	if c.samplingWindow > 0 && time.Since(c.windowStart) > c.samplingWindow {
		c.successes, c.failures = 0, 0
		c.windowStart = time.Now()
	}
}
