package cli

import (
	"github.com/spf13/cobra"

	"urdf-asset-renderer/internal/asset"
	"urdf-asset-renderer/internal/export"
)

var (
	exportOutput   string
	exportFormat   string
	exportLayout   string
	exportGeometry bool
)

var exportCmd = &cobra.Command{
	Use:   "export <urdf>",
	Short: "Write the resolved assets as JSON or YAML",
	Long: `Export writes the collapse groups and every asset (key, geometry, material,
4x4 transform relative to its canonical link) for consumption by a renderer.
The transform layout (row or column major) is stated once in the header.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "json or yaml (default: from output extension, else json)")
	exportCmd.Flags().StringVar(&exportLayout, "layout", "", "Transform layout: row or column (default: config transform_layout)")
	exportCmd.Flags().BoolVar(&exportGeometry, "geometry", false, "Inline mesh vertices, faces and UVs")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}
	format := export.FormatFor(exportOutput)
	if exportFormat != "" {
		if format, err = export.ParseFormat(exportFormat); err != nil {
			return err
		}
	}

	res, err := asset.Load(args[0], loadOptions())
	if err != nil {
		return err
	}
	doc := export.Build(res, export.Options{Layout: layout, IncludeGeometry: exportGeometry})

	if exportOutput == "" {
		return export.Write(cmd.OutOrStdout(), doc, format)
	}
	if err := export.WriteFileAs(exportOutput, doc, format); err != nil {
		return err
	}
	logger.Info("exported", "robot", res.Name, "assets", res.Len(), "output", exportOutput)
	return nil
}
