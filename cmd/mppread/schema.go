package main

import (
	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type schemaField struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

func newSchemaCommand() *cobra.Command {
	var className, version string
	cmd := &cobra.Command{
		Use:   "schema <bundle-key>",
		Short: "Show where each field of a class is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := models.ParseFieldClass(className)
			if err != nil {
				return cmdFailedf("%s", err)
			}
			if cmd.Flags().Changed("format-version") {
				cfg.Decode.FormatVersion = version
			}

			backend, err := storage.Open(cfg.Storage, logger.Get("storage"))
			if err != nil {
				return cmdFailedf("failed to open storage: %s", err)
			}
			defer backend.Close()

			data, err := backend.Read(cmd.Context(), args[0])
			if err != nil {
				return cmdFailedf("failed to read bundle: %s", err)
			}
			b, err := bundle.Decode(data, cfg.Decode.MaxBundleSize)
			if err != nil {
				return cmdFailedf("%s", err)
			}
			schema, err := pipeline.New(cfg.Decode, cfg.Calendar, logger.Get("pipeline")).Schema(b, class)
			if err != nil {
				return cmdFailedf("%s", err)
			}

			fields := make([]schemaField, 0, schema.Len())
			for _, item := range schema.Fields() {
				name := item.Field.String()
				if def, ok := models.LookupField(item.Field); ok {
					name = def.Name
				}
				fields = append(fields, schemaField{
					ID:       uint32(item.Field),
					Name:     name,
					Type:     item.Type.String(),
					Location: item.Location.String(),
				})
			}
			if isJSONOutput() {
				return printJSON(map[string]any{
					"class":              class.String(),
					"version":            schema.Version().String(),
					"embedded_field_map": schema.Embedded(),
					"fields":             fields,
				})
			}
			t := newTable(table.Row{"Field ID", "Name", "Type", "Location"}, 1)
			for _, f := range fields {
				t.AppendRow(table.Row{f.ID, f.Name, f.Type, f.Location})
			}
			t.AppendFooter(table.Row{"", "", "Total", len(fields)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&className, "class", "c", "task", "field class: task, resource, assignment or relation")
	cmd.Flags().StringVar(&version, "format-version", "", "override the bundle format version")
	return cmd
}
