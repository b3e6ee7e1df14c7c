package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewInfoCmd creates the info command
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info NUMBER",
		Short: "Show the registration holding an SFT number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0])
			if err != nil {
				return err
			}

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				rec, ok := reg.Lookup(number)
				if !ok {
					if reg.IsAvailable(number) || !registry.InRange(number) {
						return fmt.Errorf("no registration found for %d", number)
					}
					return fmt.Errorf("%d is used but has no record (run 'sftgen repair --dry-run' to inspect)", number)
				}

				description := rec.Description
				if description == "" {
					description = "-"
				}

				fmt.Fprintf(out, "SFT Number:  %d\n", rec.Number)
				fmt.Fprintf(out, "Application: %s\n", rec.ApplicationName)
				fmt.Fprintf(out, "Description: %s\n", description)
				fmt.Fprintf(out, "Registered:  %s UTC\n", rec.RegisteredAt.UTC().Format(registry.TimestampLayout))
				return nil
			})
		},
	}
}
