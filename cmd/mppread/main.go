package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/basekick-labs/mppread/internal/config"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

const (
	outputTable = "table"
	outputJSON  = "json"
)

type globalFlags struct {
	configFile   string
	logLevel     string
	outputFormat string
}

var (
	flags globalFlags
	cfg   *config.Config
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mppread",
		Short:         "Decode Microsoft Project bundles into structured records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}
	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default: ./mppread.toml or /etc/mppread/mppread.toml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides the config file")
	cmd.PersistentFlags().StringVarP(&flags.outputFormat, "output-format", "O", outputTable, "command output: table or json")

	cmd.AddCommand(newDecodeCommand())
	cmd.AddCommand(newSchemaCommand())
	cmd.AddCommand(newSampleCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadFile(flags.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	switch strings.ToLower(flags.outputFormat) {
	case outputTable, outputJSON:
		flags.outputFormat = strings.ToLower(flags.outputFormat)
	default:
		return fmt.Errorf("unsupported output format: %s", flags.outputFormat)
	}
	return nil
}

func isJSONOutput() bool {
	return flags.outputFormat == outputJSON
}
