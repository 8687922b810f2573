package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablefit/tablefit/internal/config"
	"github.com/tablefit/tablefit/internal/fit"
	"github.com/tablefit/tablefit/internal/force"
	"github.com/tablefit/tablefit/internal/opt"
	"github.com/tablefit/tablefit/internal/params"
	"github.com/tablefit/tablefit/internal/pot"
	"github.com/tablefit/tablefit/internal/store"
)

var (
	paramsPath string
	jobID      string
	dataDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single-shot potential fit",
	Long: `Reads a parameter file, the potential table and the reference
configurations, fits the table's free values and writes the fitted table.`,
	RunE: runFit,
}

func init() {
	runCmd.Flags().StringVar(&paramsPath, "params", "", "Parameter file (required)")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "Job ID for checkpoints (default: derived from start time)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoint storage")

	runCmd.MarkFlagRequired("params")
	rootCmd.AddCommand(runCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	p, err := params.Load(paramsPath)
	if err != nil {
		return err
	}
	if jobID == "" {
		jobID = "fit-" + time.Now().Format("20060102-150405")
	}

	slog.Info("Starting fit", "params", paramsPath, "engine", p.Engine, "model", p.Model)

	table, calc, im, err := setupFit(p)
	if err != nil {
		return err
	}

	initialCost, _ := calc.Evaluate(table.CopyValues())
	slog.Info("Loaded inputs",
		"functions", table.NumFunctions(),
		"free_parameters", im.Len(),
		"residuals", calc.NumResiduals(),
		"initial_cost", initialCost,
	)

	onIter, closeHooks, err := checkpointHooks(p, paramsPath, jobID, initialCost)
	if err != nil {
		return err
	}
	defer closeHooks()

	start := time.Now()
	var result *fit.FitResult
	switch p.Engine {
	case "powell":
		result, err = fit.Run(table, im, calc, fit.Options{
			Budget:      p.MaxIterations,
			Tolerance:   p.Tolerance,
			Eps:         p.FDStep,
			OnIteration: onIter,
		})
	case "mayfly":
		engine := opt.NewMayfly(p.MaxIterations, p.Population, p.Seed)
		result, err = fit.RunGlobal(table, im, calc, engine, p.Spread)
	default:
		err = fmt.Errorf("unknown engine: %s", p.Engine)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := pot.WriteTableFile(p.Output, table, p.Gradients); err != nil {
		return err
	}

	rep := calc.Report(table.CopyValues())
	slog.Info("Fit finished",
		"elapsed", elapsed,
		"initial_cost", result.InitialCost,
		"final_cost", result.FinalCost,
		"iterations", result.Iterations,
		"reason", result.Reason.String(),
		"avg_force_dev", rep.AvgForceDev,
		"min_force_dev", rep.MinForceDev,
		"max_force_dev", rep.MaxForceDev,
	)

	fmt.Printf("Wrote %s (cost: %.6g -> %.6g, %s after %d iterations)\n",
		p.Output, result.InitialCost, result.FinalCost, result.Reason, result.Iterations)

	return nil
}

// setupFit loads the table and configurations and builds the evaluator and
// index map for the given parameter set.
func setupFit(p *params.Params) (*pot.Table, *force.Calculator, *pot.IndexMap, error) {
	table, err := pot.ReadTableFile(p.Potential, p.Schema(), p.Gradients)
	if err != nil {
		return nil, nil, nil, err
	}
	configs, err := config.ReadConfigurationFile(p.Configs)
	if err != nil {
		return nil, nil, nil, err
	}
	im, err := pot.BuildIndexMap(table, p.Invariant, p.GradientFlags, p.Gradients, p.PinPolicy())
	if err != nil {
		return nil, nil, nil, err
	}
	calc, err := force.NewCalculator(table, p.Elements, configs, p.EnergyWeight, p.StressWeight, p.Workers)
	if err != nil {
		return nil, nil, nil, err
	}
	return table, calc, im, nil
}

// checkpointHooks wires the per-iteration trace and periodic checkpointing.
// Returns a nil hook when checkpointing is disabled.
func checkpointHooks(p *params.Params, paramsPath, jobID string, initialCost float64) (func(int, float64, []float64), func(), error) {
	if p.CheckpointInterval <= 0 {
		return nil, func() {}, nil
	}

	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	tw, err := store.NewTraceWriter(dataDir, jobID, false)
	if err != nil {
		return nil, nil, err
	}

	jobCfg := store.JobConfig{
		ParamsPath:         paramsPath,
		Potential:          p.Potential,
		Configs:            p.Configs,
		Model:              p.Model,
		Engine:             p.Engine,
		MaxIterations:      p.MaxIterations,
		Seed:               p.Seed,
		CheckpointInterval: p.CheckpointInterval,
	}
	interval := time.Duration(p.CheckpointInterval) * time.Second
	lastSave := time.Now()

	hook := func(iter int, cost float64, paramVec []float64) {
		if err := tw.Write(store.TraceEntry{Iteration: iter, Cost: cost, Timestamp: time.Now()}); err != nil {
			slog.Warn("Failed to write trace entry", "error", err)
		}
		if time.Since(lastSave) < interval {
			return
		}
		cp := store.NewCheckpoint(jobID, append([]float64(nil), paramVec...), cost, initialCost, iter, jobCfg)
		if err := checkpointStore.SaveCheckpoint(jobID, cp); err != nil {
			slog.Warn("Failed to save checkpoint", "job_id", jobID, "error", err)
			return
		}
		lastSave = time.Now()
	}
	closer := func() {
		if err := tw.Close(); err != nil {
			slog.Warn("Failed to close trace writer", "error", err)
		}
	}
	return hook, closer, nil
}
