package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/config"
	"github.com/sells-group/leadpipe/internal/harvest"
	"github.com/sells-group/leadpipe/internal/resilience"
)

var harvestSources []string

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Crawl the configured county sources and ingest what they find",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		registry, err := buildRegistry(cfg.Harvest)
		if err != nil {
			return err
		}

		sources := registry.All()
		if len(harvestSources) > 0 {
			sources = sources[:0]
			for _, id := range harvestSources {
				src := registry.Get(id)
				if src == nil {
					return eris.Errorf("unknown source: %s", id)
				}
				sources = append(sources, src)
			}
		}
		if len(sources) == 0 {
			return eris.New("no sources configured, set harvest.notices.url / harvest.taxroll.url / harvest.probate.url")
		}

		dlq := resilience.NewDLQ(0, 0)
		results, err := harvest.RunAll(ctx, sources, env.Ingest, harvest.Options{
			Concurrency: cfg.Harvest.Concurrency,
			DLQ:         dlq,
		})
		if err != nil {
			return eris.Wrap(err, "harvest run")
		}
		if n := dlq.Len(); n > 0 {
			zap.L().Warn("records parked in dead letter queue", zap.Int("count", n))
		}

		for _, res := range results {
			zap.L().Info("source finished",
				zap.String("source", res.SourceID),
				zap.Int("crawled", res.Crawled),
				zap.Int("promoted", res.Promoted),
				zap.Int("errors", len(res.Errors)),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

// buildRegistry registers one adapter per configured source URL. Sources
// with no URL are left out rather than failing at crawl time.
func buildRegistry(hc config.HarvestConfig) (*harvest.Registry, error) {
	registry := harvest.NewRegistry()
	if hc.Notices.URL != "" {
		if err := registry.Register(harvest.NewNoticesSource(hc.Notices)); err != nil {
			return nil, err
		}
	}
	if hc.TaxRoll.URL != "" {
		if err := registry.Register(harvest.NewTaxRollSource(hc.TaxRoll)); err != nil {
			return nil, err
		}
	}
	if hc.Probate.URL != "" {
		if err := registry.Register(harvest.NewProbateSource(hc.Probate)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func init() {
	harvestCmd.Flags().StringSliceVar(&harvestSources, "source", nil, "run only the named source IDs")
	rootCmd.AddCommand(harvestCmd)
}
