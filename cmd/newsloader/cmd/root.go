package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/newsbench/newsloader/internal/common"
	commonconfig "github.com/newsbench/newsloader/internal/common/config"
	"github.com/newsbench/newsloader/internal/newsloader/configuration"
)

const CustomConfigLocation string = "config"

var defaultConfigPath = "./config/newsloader"

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "newsloader",
		SilenceUsage: true,
		Short:        "Fills a news database with synthetic data",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	cmd.PersistentFlags().Bool("in-memory", false, "Load into a process local store instead of postgres")

	cmd.AddCommand(
		runCmd(),
		estimateCmd(),
		resetCmd(),
	)

	return cmd
}

// loadConfig reads the configuration files, then applies any command line flags the user set.
func loadConfig(cmd *cobra.Command) (configuration.LoaderConfiguration, error) {
	var config configuration.LoaderConfiguration
	userSpecifiedConfigs, err := cmd.Flags().GetStringSlice(CustomConfigLocation)
	if err != nil {
		return config, err
	}

	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if err := applyFlags(cmd.Flags(), &config); err != nil {
		return config, err
	}

	err = commonconfig.Validate(config)
	if err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	return config, config.Validate()
}

// applyFlags overrides config with the flags set on the command line.  Flags a command doesn't define are ignored.
func applyFlags(flags *pflag.FlagSet, config *configuration.LoaderConfiguration) error {
	var err error
	if flags.Changed("in-memory") {
		if config.InMemory, err = flags.GetBool("in-memory"); err != nil {
			return err
		}
	}
	if flags.Changed("total") {
		if config.News.Total, err = flags.GetInt("total"); err != nil {
			return err
		}
	}
	if flags.Changed("batch-size") {
		if config.News.BatchSize, err = flags.GetInt("batch-size"); err != nil {
			return err
		}
	}
	if flags.Changed("workers") {
		if config.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if flags.Changed("seed") {
		s, err := flags.GetString("seed")
		if err != nil {
			return err
		}
		if config.Seed, err = commonconfig.ParseSeed(s); err != nil {
			return err
		}
	}
	if flags.Changed("reset") {
		if config.Reset, err = flags.GetBool("reset"); err != nil {
			return err
		}
	}
	if flags.Changed("progress-bar") {
		if config.ProgressBar, err = flags.GetBool("progress-bar"); err != nil {
			return err
		}
	}
	return nil
}
