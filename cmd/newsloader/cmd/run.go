package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/newsbench/newsloader/internal/common/app"
	"github.com/newsbench/newsloader/internal/common/logging"
	"github.com/newsbench/newsloader/internal/newsloader/estimation"
	"github.com/newsbench/newsloader/internal/newsloader/orchestrator"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Loads reference data, then news and their tags window by window",
		RunE:  runLoad,
	}
	cmd.Flags().Int("total", 0, "Number of news rows to load")
	cmd.Flags().Int("batch-size", 0, "Number of news rows per window")
	cmd.Flags().Int("workers", 0, "Number of windows loaded concurrently")
	cmd.Flags().String("seed", "", "Seed of every random choice, or \"random\"")
	cmd.Flags().Bool("reset", false, "Truncate every table before loading")
	cmd.Flags().Bool("progress-bar", false, "Show a progress bar instead of progress log lines")
	cmd.Flags().BoolP("yes", "y", false, "Don't ask for confirmation before a large load")
	return cmd
}

func runLoad(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.ConfigureApplicationLogging(config.Logging); err != nil {
		return err
	}

	skipConfirmation, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	est := estimation.Estimate(config)
	if !skipConfirmation && estimation.ShouldPrompt(est, config.ConfirmAboveRows) {
		confirmed, err := estimation.DisplayEstimationAndConfirm(os.Stdin, os.Stdout, est)
		if err != nil {
			return err
		}
		if !confirmed {
			return errors.New("load cancelled by user")
		}
	}

	ctx, cancel := app.CreateContextWithShutdown()
	defer cancel()
	_, err = orchestrator.NewRunner(config).Run(ctx)
	return err
}
