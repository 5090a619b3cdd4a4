package main

import (
	"strings"

	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List bundles in storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			backend, err := storage.Open(cfg.Storage, logger.Get("storage"))
			if err != nil {
				return cmdFailedf("failed to open storage: %s", err)
			}
			defer backend.Close()

			lister, ok := backend.(storage.ObjectLister)
			if !ok {
				return cmdFailedf("storage backend %s cannot list objects", backend.Type())
			}
			objects, err := lister.ListObjects(cmd.Context(), prefix)
			if err != nil {
				return cmdFailedf("failed to list objects: %s", err)
			}
			if !all {
				bundles := objects[:0]
				for _, o := range objects {
					if strings.HasSuffix(o.Path, bundle.Ext) {
						bundles = append(bundles, o)
					}
				}
				objects = bundles
			}

			if isJSONOutput() {
				return printJSON(objects)
			}
			t := newTable(table.Row{"Key", "Size", "Last Modified"}, 2)
			for _, o := range objects {
				t.AppendRow(table.Row{o.Path, humanBytes(o.Size), o.LastModified.Format("2006-01-02 15:04:05")})
			}
			t.AppendFooter(table.Row{"", "Total", len(objects)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every object, not only bundles")
	return cmd
}
