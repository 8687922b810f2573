package store

import (
	"fmt"
	"time"
)

// JobConfig holds the configuration of a fit job (checkpoint copy).
// Enough is recorded to refuse resuming a checkpoint against different
// input files or a different engine.
type JobConfig struct {
	ParamsPath         string `json:"paramsPath"`
	Potential          string `json:"potential"`
	Configs            string `json:"configs"`
	Model              string `json:"model"`  // pair, eam
	Engine             string `json:"engine"` // powell, mayfly
	MaxIterations      int    `json:"maxIterations"`
	Seed               int64  `json:"seed"`
	CheckpointInterval int    `json:"checkpointInterval,omitempty"` // seconds, 0 = disabled
}

// Checkpoint is a saved fit state that can be resumed later.
//
// Only the best parameter vector (the table's flat value buffer) is saved,
// not the optimizer's internal state (direction set, sensitivity matrix).
// On resume the optimizer restarts from the checkpointed parameters with a
// fresh direction set; the cost can only improve from there, but the
// iteration path will differ from an uninterrupted run. Saving the full
// optimizer state would tie the checkpoint format to one engine and buy
// little, since a restarted direction set reconverges within a few
// iterations.
type Checkpoint struct {
	// JobID is the unique identifier for this fit job
	JobID string `json:"jobId"`

	// BestParams is the table value buffer that achieved the lowest cost
	BestParams []float64 `json:"bestParams"`

	// BestCost is the weighted sum of squared residuals at BestParams
	BestCost float64 `json:"bestCost"`

	// InitialCost is the cost of the starting table, for improvement tracking
	InitialCost float64 `json:"initialCost"`

	// Iteration is the outer-iteration count when this checkpoint was created
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full
// parameter vector. Used for listing checkpoints cheaply.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	BestCost  float64   `json:"bestCost"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Engine    string    `json:"engine"`
	Potential string    `json:"potential"`
	Configs   string    `json:"configs"`
}

// NewCheckpoint creates a checkpoint from runtime fit state.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestCost:  c.BestCost,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Engine:    c.Config.Engine,
		Potential: c.Config.Potential,
		Configs:   c.Config.Configs,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Potential == "" {
		return &ValidationError{Field: "Config.Potential", Reason: "cannot be empty"}
	}
	if c.Config.Configs == "" {
		return &ValidationError{Field: "Config.Configs", Reason: "cannot be empty"}
	}
	if c.Config.Engine == "" {
		return &ValidationError{Field: "Config.Engine", Reason: "cannot be empty"}
	}
	if c.Config.MaxIterations <= 0 {
		return &ValidationError{Field: "Config.MaxIterations", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// Returns an error if the configs are incompatible.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Potential != config.Potential {
		return &CompatibilityError{
			Field:    "Potential",
			Expected: c.Config.Potential,
			Actual:   config.Potential,
		}
	}
	if c.Config.Configs != config.Configs {
		return &CompatibilityError{
			Field:    "Configs",
			Expected: c.Config.Configs,
			Actual:   config.Configs,
		}
	}
	if c.Config.Model != config.Model {
		return &CompatibilityError{
			Field:    "Model",
			Expected: c.Config.Model,
			Actual:   config.Model,
		}
	}
	if c.Config.Engine != config.Engine {
		return &CompatibilityError{
			Field:    "Engine",
			Expected: c.Config.Engine,
			Actual:   config.Engine,
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

// String implements a compact display form for listings.
func (i CheckpointInfo) String() string {
	return fmt.Sprintf("%s: cost %.6g after %d iterations (%s)", i.JobID, i.BestCost, i.Iteration, i.Engine)
}
