package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/agent"
	"github.com/sells-group/leadpipe/internal/catalog"
	"github.com/sells-group/leadpipe/internal/db"
	"github.com/sells-group/leadpipe/internal/reasoning"
	"github.com/sells-group/leadpipe/internal/store"
	anthropicpkg "github.com/sells-group/leadpipe/pkg/anthropic"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one agent cycle: plan, targeted harvest, full harvest, bulk delta",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cycle")
		if err != nil {
			return err
		}
		defer env.Close()

		cyc, err := buildCycle(env)
		if err != nil {
			return err
		}

		outcome := cyc.Run(ctx)

		zap.L().Info("cycle complete",
			zap.String("cycle_id", outcome.CycleID),
			zap.Int("promoted", outcome.Promoted),
			zap.Float64("cost_usd", outcome.CostUSD),
			zap.Float64("elapsed_secs", outcome.ElapsedSecs),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

// buildCycle wires the planner, catalog client, and bulk-upsert pool into
// an agent cycle. The planner and catalog are optional: without an
// Anthropic key every phase runs, without a catalog URL the bulk phase
// reports itself skipped.
func buildCycle(env *appEnv) (*agent.Cycle, error) {
	registry, err := buildRegistry(cfg.Harvest)
	if err != nil {
		return nil, err
	}

	var planner agent.Planner
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		planner = reasoning.NewEngine(client, cfg.Reasoning)
	} else {
		zap.L().Info("anthropic key not set, planner disabled, all phases run")
	}

	var cat agent.CatalogClient
	if cfg.Catalog.BaseURL != "" {
		client, err := catalog.NewClient(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		cat = client
	}

	var pool db.Pool
	if ps, ok := env.Store.(*store.PostgresStore); ok {
		pool = ps.Pool()
	}

	return agent.NewCycle(cfg.Agent, planner, registry, env.Ingest, cat, pool, env.Audit), nil
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}
