package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/store"
)

var (
	leadsStatus   string
	leadsAssignee string
	leadsMinScore float64
	leadsLimit    int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Store.ListLeads(ctx, store.LeadFilter{
			Status:     model.LeadStatus(leadsStatus),
			AssignedTo: leadsAssignee,
			MinScore:   leadsMinScore,
			Limit:      leadsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status")
	leadsCmd.Flags().StringVar(&leadsAssignee, "assignee", "", "filter by assignee")
	leadsCmd.Flags().Float64Var(&leadsMinScore, "min-score", 0, "minimum priority")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum rows")
	rootCmd.AddCommand(leadsCmd)
}
