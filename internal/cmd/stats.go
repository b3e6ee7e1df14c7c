package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pool usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, func(reg *registry.Registry, out io.Writer) error {
				printStats(out, reg.Statistics())
				return nil
			})
		},
	}
}

func printStats(out io.Writer, stats registry.Statistics) {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(out, bold("SFT Number Pool"))
	fmt.Fprintln(out, "===============")
	p.Fprintf(out, "  Total available:  %d\n", stats.TotalCapacity)
	p.Fprintf(out, "  Used:             %d\n", stats.UsedCount)
	p.Fprintf(out, "  Remaining:        %d\n", stats.RemainingCount)

	usage := p.Sprintf("%.2f%%", stats.UsagePercentage)
	switch {
	case stats.UsagePercentage >= 90:
		usage = red(usage)
	case stats.UsagePercentage >= 50:
		usage = yellow(usage)
	default:
		usage = green(usage)
	}
	fmt.Fprintf(out, "  Usage:            %s\n", usage)

	if stats.UsedCount == 0 {
		return
	}
	fmt.Fprintln(out)
	// SFT numbers are identifiers, so no digit grouping here
	fmt.Fprintf(out, "  Lowest used:      %d\n", stats.LowestUsed)
	fmt.Fprintf(out, "  Highest used:     %d\n", stats.HighestUsed)
	fmt.Fprintf(out, "  Average:          %.1f\n", stats.AverageUsed)
}
