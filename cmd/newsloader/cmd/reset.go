package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/newsbench/newsloader/internal/common/app"
	"github.com/newsbench/newsloader/internal/common/logging"
	"github.com/newsbench/newsloader/internal/newsloader/orchestrator"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Truncates every table of the news schema and restarts their ids",
		RunE:  resetDatabase,
	}
	return cmd
}

func resetDatabase(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.ConfigureApplicationLogging(config.Logging); err != nil {
		return err
	}
	ctx, cancel := app.CreateContextWithShutdown()
	defer cancel()

	start := time.Now()
	if err := orchestrator.NewRunner(config).Reset(ctx); err != nil {
		return err
	}
	logging.Infof("Database reset in %s", time.Since(start))
	return nil
}
