package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadpipe/internal/store"
)

var (
	auditEntityType string
	auditEntityID   string
	auditAction     string
	auditSince      string
	auditLimit      int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the append-only event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.AuditFilter{
			EntityType: auditEntityType,
			EntityID:   auditEntityID,
			Action:     auditAction,
			Limit:      auditLimit,
		}
		if auditSince != "" {
			since, err := time.Parse(time.RFC3339, auditSince)
			if err != nil {
				return err
			}
			filter.Since = since
		}

		entries, err := env.Audit.List(ctx, filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditEntityType, "entity-type", "", "filter by entity type (property, lead, cycle)")
	auditCmd.Flags().StringVar(&auditEntityID, "entity-id", "", "filter by entity ID")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "filter by action")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "only entries at or after this RFC3339 time")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum rows")
	rootCmd.AddCommand(auditCmd)
}
