package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered applications",
		Long: `Lists registrations in the order they were made.
With --recent N only the last N are shown, highest number first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recent < 0 {
				return fmt.Errorf("--recent must not be negative")
			}

			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				records := reg.Registrations()
				if recent > 0 {
					records = reg.Recent(recent)
				}

				if len(records) == 0 {
					fmt.Fprintln(out, "No applications registered yet")
					return nil
				}

				if isTerminal(out) {
					printTable(out, records)
				} else {
					printTabSeparated(out, records)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "Show only the N most recent registrations")

	return cmd
}

// isTerminal reports whether out is an interactive terminal
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printTable(out io.Writer, records []registry.Registration) {
	width := 32
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			// number and date take 32 columns
			width = max(16, min(48, w-32-6))
		}
	}

	// pad before colouring so escape codes don't skew the columns
	fmt.Fprintln(out, bold(fmt.Sprintf("%-6s  %-*s  %s", "SFT", width, "Application", "Registered (UTC)")))
	for _, rec := range records {
		fmt.Fprintf(out, "%s  %-*s  %s\n",
			green(fmt.Sprintf("%-6d", rec.Number)), width, truncate(rec.ApplicationName, width), rec.RegisteredAt.UTC().Format(registry.TimestampLayout))
		if rec.Description != "" {
			fmt.Fprintf(out, "        %s\n", truncate(rec.Description, width+22))
		}
	}
	fmt.Fprintf(out, "\n%d application(s)\n", len(records))
}

// printTabSeparated writes one record per line for scripts
func printTabSeparated(out io.Writer, records []registry.Registration) {
	for _, rec := range records {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n",
			rec.Number, rec.ApplicationName, rec.Description, rec.RegisteredAt.UTC().Format(registry.TimestampLayout))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
