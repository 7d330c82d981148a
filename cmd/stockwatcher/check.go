package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatcher/internal/stock"
)

// errRunFailed is returned by "check" when a failed run must be surfaced.
var errRunFailed = errors.New("stock check failed")

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single stock check and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker, cleanup, err := buildChecker(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res := checker.Run(cmd.Context())
			c.logger.Info("stock check finished",
				zap.String("run_id", res.RunID),
				zap.String("outcome", string(res.Outcome)),
				zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
			)
			return exitError(res, c.cfg.Trigger.ReportFailures)
		},
	}
}

// exitError maps a run result to the command's error. Failed runs only
// produce an error when the invoker asked to see them.
func exitError(res stock.Result, reportFailures bool) error {
	if !res.Failed() || !reportFailures {
		return nil
	}
	return fmt.Errorf("%w: %w", errRunFailed, res.Err)
}
