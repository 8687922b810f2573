package fit

import (
	"log/slog"
	"math"
)

// CostTracker records the cost history of a fit and flags stagnation.
// The optimizer has its own termination logic; this tracker feeds progress
// logging, the iteration trace, and early stopping for engines that cannot
// detect convergence themselves.
type CostTracker struct {
	// Threshold is the minimum relative improvement that counts as progress
	// Example: 0.001 = 0.1% improvement required
	Threshold float64

	// Patience is the number of iterations with no significant improvement
	// before Stagnant reports true
	Patience int

	costHistory     []float64
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Number of iterations without significant improvement
}

// NewCostTracker creates a tracker with the given stagnation settings.
func NewCostTracker(threshold float64, patience int) *CostTracker {
	return &CostTracker{
		Threshold:       threshold,
		Patience:        patience,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new cost value and returns true when the fit has gone
// Patience iterations without a relative improvement above Threshold.
func (c *CostTracker) Update(cost float64) bool {
	c.costHistory = append(c.costHistory, cost)

	if cost < c.bestCost {
		c.bestCost = cost
	}

	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	relativeImprovement := (c.lastSignificant - cost) / math.Max(c.lastSignificant, math.SmallestNonzeroFloat64)

	if relativeImprovement >= c.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		slog.Debug("Cost improvement detected",
			"cost", cost,
			"relative_improvement", relativeImprovement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.Patience,
	)
	return c.Patience > 0 && c.staleCount >= c.Patience
}

// BestCost returns the best cost seen so far
func (c *CostTracker) BestCost() float64 {
	return c.bestCost
}

// History returns the full cost history
func (c *CostTracker) History() []float64 {
	return append([]float64{}, c.costHistory...) // Return copy
}

// StaleCount returns the current number of iterations without improvement
func (c *CostTracker) StaleCount() int {
	return c.staleCount
}
