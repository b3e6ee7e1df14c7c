package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/export"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export registrations to Excel or CSV",
		Long: `Writes every registration to an Excel report (Applications and Summary sheets) or a CSV file.
The file is named after the current time unless --output is given. Use --output - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				data, err := export.Export(f, reg.Registrations(), reg.Statistics())
				if err != nil {
					return fmt.Errorf("failed to export: %w", err)
				}

				if output == "-" {
					_, err := out.Write(data)
					return err
				}

				path := output
				if path == "" {
					path = export.Filename(f, time.Now())
				}
				if err := os.WriteFile(path, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}

				fmt.Fprintf(out, "✅ Exported %d registration(s) to %s\n", len(reg.Registrations()), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "excel", "Export format (excel, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, or - for stdout")

	return cmd
}
