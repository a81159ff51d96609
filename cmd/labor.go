package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/model"
)

var (
	laborDesc     string
	laborPriorLow float64
	laborPriorHi  float64
	laborPriorAvg float64
)

var laborCmd = &cobra.Command{
	Use:   "labor",
	Short: "Build a labor-time consensus estimate for a repair task",
	Long:  "Fans the task out to every configured capability (Anthropic, Perplexity, web signals, flat-rate guide) and reconciles the returned estimates against your own prior.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		prior := &model.TaskEstimate{
			Low:     laborPriorLow,
			High:    laborPriorHi,
			Average: laborPriorAvg,
		}
		if prior.Average == 0 {
			prior.Average = (prior.Low + prior.High) / 2
		}

		env, err := initEnv(ctx, "labor")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.CreateRun(ctx, model.RunKindLaborEstimate, laborDesc)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result, err := env.Labor.Estimate(ctx, laborDesc, prior)
		if err != nil {
			if ferr := env.Store.FailRun(ctx, run.ID, err); ferr != nil {
				zap.L().Error("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
			return eris.Wrap(err, "estimate labor")
		}

		if err := env.Store.CompleteRun(ctx, run.ID, result); err != nil {
			zap.L().Error("record completed run", zap.String("run_id", run.ID), zap.Error(err))
		}

		zap.L().Info("estimation complete",
			zap.String("task", laborDesc),
			zap.Int("sources", len(result.SourceEstimates)),
			zap.Float64("data_quality", result.DataQuality.Score),
			zap.String("tier", string(result.DataQuality.Tier)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	laborCmd.Flags().StringVar(&laborDesc, "desc", "", "task description, e.g. \"replace front brake pads and rotors\" (required)")
	laborCmd.Flags().Float64Var(&laborPriorLow, "prior-low", 0, "your low estimate in hours (required)")
	laborCmd.Flags().Float64Var(&laborPriorHi, "prior-high", 0, "your high estimate in hours (required)")
	laborCmd.Flags().Float64Var(&laborPriorAvg, "prior-average", 0, "your expected hours (defaults to the midpoint)")
	_ = laborCmd.MarkFlagRequired("desc")
	_ = laborCmd.MarkFlagRequired("prior-low")
	_ = laborCmd.MarkFlagRequired("prior-high")
	rootCmd.AddCommand(laborCmd)
}
