package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/config"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/logging"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/store"
)

// flags shared by every subcommand
var globals struct {
	configPath string
	logLevel   string
}

// AddGlobalFlags registers --config and --log-level on the root command
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&globals.configPath, "config", "", "Config file (default ./sftgen.yaml)")
	root.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "Override logging.level (trace, debug, info, warn, error)")
}

// session holds what a command needs to talk to the registry
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	setLevel logging.LevelSetter
	backend  store.Backend
}

func newSession() (*session, error) {
	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if globals.logLevel != "" {
		if !logging.ValidLevel(globals.logLevel) {
			return nil, fmt.Errorf("invalid log level %q", globals.logLevel)
		}
		level = globals.logLevel
	}
	logger, setLevel := logging.New(level, cfg.Logging.Format, os.Stderr)

	backend, err := store.Open(store.Options{
		Backend:     cfg.Storage.Backend,
		RecordsPath: cfg.RecordsPath(),
		MemoryPath:  cfg.MemoryPath(),
		SQLitePath:  cfg.SQLitePath(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &session{cfg: cfg, logger: logger, setLevel: setLevel, backend: backend}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}

// openRegistry loads the registry over the session's store
func (s *session) openRegistry(ctx context.Context, opts ...registry.Option) (*registry.Registry, error) {
	opts = append([]registry.Option{registry.WithLogger(s.logger)}, opts...)
	reg, err := registry.New(ctx, s.backend, opts...)
	if errors.Is(err, registry.ErrPersistenceCorrupt) {
		return nil, fmt.Errorf("%w (run 'sftgen repair' to rebuild the memory file from the records)", err)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// withRegistry opens a session and registry, runs fn, and closes both
func withRegistry(cmd *cobra.Command, fn func(reg *registry.Registry, out io.Writer) error) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	reg, err := sess.openRegistry(cmd.Context())
	if err != nil {
		return err
	}

	return fn(reg, cmd.OutOrStdout())
}

func parseNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid SFT number %q: must be an integer", arg)
	}
	return n, nil
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)
