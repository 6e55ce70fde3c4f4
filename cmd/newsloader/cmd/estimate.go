package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/newsbench/newsloader/internal/newsloader/estimation"
)

func estimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Prints the number of rows and the database size a load would produce",
		RunE:  estimateLoad,
	}
	cmd.Flags().Int("total", 0, "Number of news rows to load")
	cmd.Flags().Int("batch-size", 0, "Number of news rows per window")
	return cmd
}

func estimateLoad(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	estimation.Display(os.Stdout, estimation.Estimate(config))
	return nil
}
