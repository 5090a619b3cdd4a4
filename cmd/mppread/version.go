package main

import (
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version never needs a config file
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{
				"version":    Version,
				"go_version": runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			}
			if isJSONOutput() {
				return printJSON(info)
			}
			t := newTable(table.Row{"Version", "Go Version", "Platform"})
			t.AppendRow(table.Row{info["version"], info["go_version"], info["platform"]})
			t.Render()
			return nil
		},
	}
}
