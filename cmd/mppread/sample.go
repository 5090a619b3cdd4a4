package main

import (
	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSampleCommand() *cobra.Command {
	var compression string
	cmd := &cobra.Command{
		Use:   "sample <key>",
		Short: "Write a small sample bundle for trying the decoder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bundle.ParseCompression(compression)
			if err != nil {
				return cmdFailedf("%s", err)
			}
			data, err := bundle.Encode(bundle.Sample(), c)
			if err != nil {
				return cmdFailedf("failed to encode sample: %s", err)
			}

			backend, err := storage.Open(cfg.Storage, logger.Get("storage"))
			if err != nil {
				return cmdFailedf("failed to open storage: %s", err)
			}
			defer backend.Close()
			if err := backend.Write(cmd.Context(), args[0], data); err != nil {
				return cmdFailedf("failed to write sample: %s", err)
			}

			info := map[string]any{"uri": backend.URI(args[0]), "compression": c.String(), "bytes": len(data)}
			if isJSONOutput() {
				return printJSON(info)
			}
			t := newTable(table.Row{"URI", "Compression", "Size"}, 3)
			t.AppendRow(table.Row{info["uri"], info["compression"], humanBytes(int64(len(data)))})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "zstd", "bundle compression: none, gzip or zstd")
	return cmd
}
