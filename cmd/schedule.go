package main

import (
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run agent cycles on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "schedule")
		if err != nil {
			return err
		}
		defer env.Close()

		cyc, err := buildCycle(env)
		if err != nil {
			return err
		}

		// A cycle already carries its own wall budget; the guard only
		// protects against a budget longer than the cron interval.
		var running atomic.Bool

		c := cron.New()
		_, err = c.AddFunc(cfg.Schedule.Spec, func() {
			if !running.CompareAndSwap(false, true) {
				zap.L().Warn("previous cycle still running, skipping tick")
				return
			}
			defer running.Store(false)

			outcome := cyc.Run(ctx)
			zap.L().Info("scheduled cycle complete",
				zap.String("cycle_id", outcome.CycleID),
				zap.Int("promoted", outcome.Promoted),
				zap.Float64("cost_usd", outcome.CostUSD),
			)
		})
		if err != nil {
			return eris.Wrapf(err, "parse cron spec %q", cfg.Schedule.Spec)
		}

		zap.L().Info("scheduler started", zap.String("spec", cfg.Schedule.Spec))
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
