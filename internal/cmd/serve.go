package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/config"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/metrics"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the registry as a JSON API under /api/v1, with /healthz and prometheus metrics.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			cfg := sess.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			var collector *metrics.Collector
			opts := []registry.Option{}
			if cfg.Metrics.Enabled {
				promReg := prometheus.NewRegistry()
				promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				collector = metrics.New(promReg)
				opts = append(opts, registry.WithObserver(collector))
			}

			reg, err := sess.openRegistry(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			// Only the log level can change without a restart
			if globals.logLevel == "" {
				cfg.Watch(sess.logger, func(next *config.Config) {
					sess.setLevel(next.Logging.Level)
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Registry:    reg,
				Metrics:     collector,
				MetricsPath: cfg.Metrics.Path,
				Logger:      sess.logger,
				Mode:        cfg.Server.Mode,
			})

			stats := reg.Statistics()
			fmt.Fprintf(cmd.OutOrStdout(), "🚀 Serving SFT numbers on http://%s (%d used, %d remaining)\n",
				cfg.Server.Addr(), stats.UsedCount, stats.RemainingCount)

			return srv.Run(ctx, cfg.Server)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.port")

	return cmd
}
