// Command vidshare runs the video platform API and its maintenance tasks.
//
// Configuration is read from an optional YAML file (--config) and then from
// the environment, which takes precedence.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vidshare/internal/config"
	"vidshare/pkg/logger"
)

const configFlag = "config"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "vidshare",
		Short:        "Video sharing platform API",
		SilenceUsage: true,
	}
	root.PersistentFlags().String(configFlag, "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newRecountCommand(),
		newUserCommand(),
	)
	return root
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logger.New(cfg.App.LogLevel, cfg.App.LogFormat), nil
}
