package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/skiptrace"
)

var skiptraceCmd = &cobra.Command{
	Use:   "skiptrace <property-id...>",
	Short: "Look up owner contact details and fill empty contact fields",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Skiptrace.BaseURL == "" {
			return eris.New("skiptrace.base_url is required")
		}

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		client, err := skiptrace.NewClient(cfg.Skiptrace)
		if err != nil {
			return err
		}

		results := map[string]*skiptrace.Contact{}
		var failed int
		for _, id := range args {
			contact, err := client.Enrich(ctx, env.Store, id)
			if err != nil {
				failed++
				zap.L().Error("skip trace failed", zap.String("property_id", id), zap.Error(err))
				continue
			}
			results[id] = contact
		}

		zap.L().Info("skip trace complete",
			zap.Int("traced", len(results)),
			zap.Int("failed", failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(skiptraceCmd)
}
