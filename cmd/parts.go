package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/consensus"
	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
)

var (
	partsQuery string
	partsSites []string
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "Validate market price signals for a parts query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(partsSites) > 0 {
			cfg.Validation.DomainHints = partsSites
		}

		env, err := initEnv(ctx, "parts")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.CreateRun(ctx, model.RunKindPriceValidation, partsQuery)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result, err := env.Parts.Validate(ctx, partsQuery, nil)
		if err != nil {
			if ferr := env.Store.FailRun(ctx, run.ID, err); ferr != nil {
				zap.L().Error("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
			return eris.Wrap(err, "validate parts query")
		}

		if err := env.Store.CompleteRun(ctx, run.ID, result); err != nil {
			zap.L().Error("record completed run", zap.String("run_id", run.ID), zap.Error(err))
		}

		prices := consensus.Summarize(consensus.FromObservations(result.Observations, model.UnitCurrency))

		zap.L().Info("validation complete",
			zap.String("query", partsQuery),
			zap.Float64("confidence", result.FinalConfidence),
			zap.Bool("target_reached", result.TargetReached),
			zap.Int("rounds", len(result.Rounds)),
			zap.String("price_tier", string(prices.ConfidenceTier)),
		)

		out := struct {
			Report       *refine.Result         `json:"report"`
			PriceSummary model.ConsensusSummary `json:"price_summary"`
		}{result, prices}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	partsCmd.Flags().StringVar(&partsQuery, "query", "", "parts query, e.g. \"2015 Honda Civic front brake pads\" (required)")
	partsCmd.Flags().StringSliceVar(&partsSites, "site", nil, "restrict searches to these domains (overrides configured hints)")
	_ = partsCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(partsCmd)
}
