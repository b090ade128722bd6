package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/ingest"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/store"
)

var scoreAllActive bool

var scoreCmd = &cobra.Command{
	Use:   "score [property-id...]",
	Short: "Recompute scores for properties and re-apply the promotion gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && !scoreAllActive {
			return cmd.Usage()
		}

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if scoreAllActive {
			ids, err = activePropertyIDs(cmd, env)
			if err != nil {
				return err
			}
		}

		// Partial-failure semantics: one bad property does not abort the
		// batch.
		var results []*ingest.RescoreResult
		var failed int
		for _, id := range ids {
			res, err := env.Ingest.Rescore(ctx, id)
			if err != nil {
				failed++
				zap.L().Error("rescore failed", zap.String("property_id", id), zap.Error(err))
				continue
			}
			results = append(results, res)
		}

		zap.L().Info("rescore complete",
			zap.Int("scored", len(results)),
			zap.Int("failed", failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

// activePropertyIDs collects the distinct properties behind active leads.
func activePropertyIDs(cmd *cobra.Command, env *appEnv) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, status := range model.ActiveStatuses {
		leadsList, err := env.Store.ListLeads(cmd.Context(), store.LeadFilter{Status: status})
		if err != nil {
			return nil, err
		}
		for _, l := range leadsList {
			if !seen[l.PropertyID] {
				seen[l.PropertyID] = true
				ids = append(ids, l.PropertyID)
			}
		}
	}
	return ids, nil
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreAllActive, "active", false, "rescore every property with an active lead")
	rootCmd.AddCommand(scoreCmd)
}
