package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRepairCmd creates the repair command
func NewRepairCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rebuild the memory file from the records file",
		Long: `Rewrites the used-number memory file from the records file, which is treated as the source of truth.
Run it when the memory file is missing, unreadable, or out of step with the records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			out := cmd.OutOrStdout()

			report, err := sess.backend.Rebuild(cmd.Context(), dryRun)
			if err != nil {
				return fmt.Errorf("failed to rebuild: %w", err)
			}

			fmt.Fprintf(out, "Records file holds %d registration(s)\n", report.Records)
			if !report.Changed() {
				fmt.Fprintln(out, "✅ Memory file is consistent, nothing to do")
				return nil
			}

			if len(report.Added) > 0 {
				fmt.Fprintf(out, "  %s %d number(s) missing from the memory file: %v\n", green("+"), len(report.Added), report.Added)
			}
			if len(report.Dropped) > 0 {
				fmt.Fprintf(out, "  %s %d number(s) with no record: %v\n", red("-"), len(report.Dropped), report.Dropped)
			}
			fmt.Fprintln(out)

			if dryRun {
				fmt.Fprintln(out, "Dry run - no changes made")
				return nil
			}

			fmt.Fprintln(out, "✅ Memory file rebuilt")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change")

	return cmd
}
