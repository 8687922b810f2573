package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablefit/tablefit/internal/fit"
	"github.com/tablefit/tablefit/internal/params"
	"github.com/tablefit/tablefit/internal/pot"
	"github.com/tablefit/tablefit/internal/store"
)

var resumeParamsPath string

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a fit from its last checkpoint",
	Long: `Loads the checkpointed best parameter vector for the given job and
continues fitting from there. The parameter file must name the same
input files and engine as the original run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeParamsPath, "params", "", "Parameter file (default: path recorded in the checkpoint)")
	resumeCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	resumeJobID := args[0]

	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	cp, err := checkpointStore.LoadCheckpoint(resumeJobID)
	if err != nil {
		return err
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint %s is unusable: %w", resumeJobID, err)
	}

	if resumeParamsPath == "" {
		resumeParamsPath = cp.Config.ParamsPath
	}
	p, err := params.Load(resumeParamsPath)
	if err != nil {
		return err
	}

	if err := cp.IsCompatible(store.JobConfig{
		Potential: p.Potential,
		Configs:   p.Configs,
		Model:     p.Model,
		Engine:    p.Engine,
	}); err != nil {
		return fmt.Errorf("cannot resume %s: %w", resumeJobID, err)
	}

	table, calc, im, err := setupFit(p)
	if err != nil {
		return err
	}
	if len(cp.BestParams) != table.Len() {
		return fmt.Errorf("checkpoint %s holds %d values, table has %d",
			resumeJobID, len(cp.BestParams), table.Len())
	}
	table.SetValues(cp.BestParams)
	table.RebuildSplineCache()

	remaining := p.MaxIterations - cp.Iteration
	if remaining <= 0 {
		return fmt.Errorf("checkpoint %s already completed %d of %d iterations",
			resumeJobID, cp.Iteration, p.MaxIterations)
	}

	slog.Info("Resuming fit",
		"job_id", resumeJobID,
		"checkpoint_cost", cp.BestCost,
		"completed_iterations", cp.Iteration,
		"remaining_iterations", remaining,
	)

	onIter, closeHooks, err := checkpointHooks(p, resumeParamsPath, resumeJobID, cp.InitialCost)
	if err != nil {
		return err
	}
	defer closeHooks()

	start := time.Now()
	result, err := fit.Run(table, im, calc, fit.Options{
		Budget:      remaining,
		Tolerance:   p.Tolerance,
		Eps:         p.FDStep,
		OnIteration: onIter,
	})
	if err != nil {
		return err
	}

	if err := pot.WriteTableFile(p.Output, table, p.Gradients); err != nil {
		return err
	}

	slog.Info("Resumed fit finished",
		"elapsed", time.Since(start),
		"final_cost", result.FinalCost,
		"reason", result.Reason.String(),
	)
	fmt.Printf("Wrote %s (cost: %.6g -> %.6g, %s)\n",
		p.Output, cp.BestCost, result.FinalCost, result.Reason)
	return nil
}
