package cascade

import "sync/atomic"

// StatsCollector defines an interface for collecting solver statistics.
// Implement this interface to integrate with monitoring systems.
type StatsCollector interface {
	// RecordIteration is called after each solver iteration with the
	// convergence score, the conditioning diagnostic and the applied
	// step scale.
	RecordIteration(iter int, squaredNorm, sigma, alpha float64)

	// RecordSolve is called once per Solve call.
	RecordSolve(status Status, iterations int)
}

// NoopStatsCollector is a no-op implementation of StatsCollector.
// Use this when statistics collection is not needed.
type NoopStatsCollector struct{}

func (NoopStatsCollector) RecordIteration(int, float64, float64, float64) {}
func (NoopStatsCollector) RecordSolve(Status, int)                        {}

// BasicStatsCollector provides simple in-memory statistics collection.
// Useful for debugging and tests without external dependencies.
// Safe for concurrent use.
type BasicStatsCollector struct {
	Iterations atomic.Int64
	Solves     atomic.Int64
	Successes  atomic.Int64
}

func (c *BasicStatsCollector) RecordIteration(int, float64, float64, float64) {
	c.Iterations.Add(1)
}

func (c *BasicStatsCollector) RecordSolve(status Status, _ int) {
	c.Solves.Add(1)
	if status == StatusSuccess {
		c.Successes.Add(1)
	}
}
