package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewBulkCmd creates the bulk command
func NewBulkCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Register many applications at once",
		Long: `Registers one application per input line, in the form:

  AppName | Description

The description is optional. Input is read from --file, or stdin when no file is given.

Examples:
  sftgen bulk -f apps.txt
  printf 'WebApp_Login | User login system\nAPI_UserService\n' | sftgen bulk`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			apps := registry.ParseBulk(input)
			if len(apps) == 0 {
				return fmt.Errorf("no applications found in input")
			}

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				results := reg.BulkRegister(cmd.Context(), apps)

				failed := 0
				for _, res := range results {
					if res.Success {
						fmt.Fprintf(out, "  %s %-32s %s\n", green("✓"), res.ApplicationName, green(res.Number))
					} else {
						failed++
						fmt.Fprintf(out, "  %s %-32s %s\n", red("✗"), res.ApplicationName, red(res.Error))
					}
				}
				fmt.Fprintln(out)

				if failed > 0 {
					return fmt.Errorf("%d of %d registrations failed", failed, len(results))
				}
				fmt.Fprintf(out, "✅ Registered %d application(s)\n", len(results))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read applications from file instead of stdin")

	return cmd
}

func readInput(cmd *cobra.Command, file string) (string, error) {
	if file == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}
