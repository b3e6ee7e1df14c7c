package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/cmd"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sftgen",
		Short: "SFT number generator",
		Long: `sftgen assigns unique SFT numbers between 3000 and 9999 to applications and keeps
a durable record of every assignment so no number is ever issued twice.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewRegisterCmd())
	rootCmd.AddCommand(cmd.NewBulkCmd())
	rootCmd.AddCommand(cmd.NewReserveCmd())
	rootCmd.AddCommand(cmd.NewCheckCmd())
	rootCmd.AddCommand(cmd.NewStatsCmd())
	rootCmd.AddCommand(cmd.NewListCmd())
	rootCmd.AddCommand(cmd.NewInfoCmd())
	rootCmd.AddCommand(cmd.NewExportCmd())
	rootCmd.AddCommand(cmd.NewRepairCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
