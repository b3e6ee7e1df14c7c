package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "Assign a random SFT number to an application",
		Long:  `Picks an unused SFT number between 3000 and 9999 at random and records it against the application.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				number, err := reg.Allocate(cmd.Context(), name, description)
				if err != nil {
					return fmt.Errorf("failed to register %s: %w", name, err)
				}

				fmt.Fprintf(out, "✅ Registered %s with SFT number %s\n", name, green(number))
				stats := reg.Statistics()
				fmt.Fprintf(out, "   %d numbers remaining\n", stats.RemainingCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Application description")

	return cmd
}

// NewReserveCmd creates the reserve command
func NewReserveCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "reserve NUMBER NAME",
		Short: "Assign a specific SFT number to an application",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				if _, err := reg.Reserve(cmd.Context(), name, description, number); err != nil {
					return fmt.Errorf("failed to reserve %d for %s: %w", number, name, err)
				}

				fmt.Fprintf(out, "✅ Reserved SFT number %s for %s\n", green(number), name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Application description")

	return cmd
}

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check NUMBER",
		Short: "Check whether an SFT number is available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0])
			if err != nil {
				return err
			}

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				switch {
				case !registry.InRange(number):
					fmt.Fprintf(out, "%s %d is outside %d-%d\n", red("✗"), number, registry.MinNumber, registry.MaxNumber)
				case reg.IsAvailable(number):
					fmt.Fprintf(out, "%s %d is available\n", green("✓"), number)
				default:
					holder := "another process"
					if rec, ok := reg.Lookup(number); ok {
						holder = rec.ApplicationName
					}
					fmt.Fprintf(out, "%s %d is already used by %s\n", yellow("✗"), number, holder)
				}
				return nil
			})
		},
	}
}
