package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatcher/internal/config"
	"github.com/JakeFAU/stockwatcher/internal/logging"
)

// cli carries state shared by subcommands once PersistentPreRunE has run.
type cli struct {
	cfgPath string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "stockwatcher",
		Short: "Watch a retailer for in-stock product variants.",
		Long: `stockwatcher scrapes a product collection page, follows the listings that
match the watched item type, checks each variant page for availability and
publishes one notification listing every in-stock variant.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			c.sync()
		},
	}
	cmd.PersistentFlags().StringVar(&c.cfgPath, "config", "", "path to a config file (yaml, json or toml)")

	cmd.AddCommand(newCheckCmd(c))
	cmd.AddCommand(newServeCmd(c))
	return cmd
}

func (c *cli) init() error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) sync() {
	if c.logger == nil {
		return
	}
	if err := c.logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
	}
}
