package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/squealog/squealogd/internal/eventloop"
	"github.com/squealog/squealogd/internal/klog"
	"github.com/squealog/squealogd/internal/record"
	"github.com/squealog/squealogd/internal/source"
	"github.com/squealog/squealogd/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	ConfigPath    string
	RetentionRows int

	// Sources overrides inventory discovery (for testing). When set,
	// KernelDecoder is used for any KernelDevice entries.
	Sources       []source.Source
	KernelDecoder func(data []byte) []*record.Record
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest logs until terminated",
		Long: `Discover the source inventory (socket-activated datagram sockets plus
the kernel log device where the platform has one), open the database,
and serve sources until SIGINT or SIGTERM.

The database location resolves from --db, then the SQUEALOG_DB
environment variable, then the config file, then ` + DefaultDatabasePath + `.

Example:
  squealogd run --db /var/log/log.db
  squealogd run --config /etc/squealogd.yml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a yaml config file")
	cmd.Flags().IntVar(&opts.RetentionRows, "retention", 0, "retention bound in rows (0 = config/default)")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	// A per-run identifier correlates diagnostics across restarts that
	// share one log stream.
	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	var cfg *Config
	if opts.ConfigPath != "" {
		var err error
		cfg, err = LoadConfig(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	dbPath := resolveDatabase(opts.Database, cfg)
	retention := resolveRetention(opts.RetentionRows, cfg)

	sources, decoder, err := discoverSources(opts, logger)
	if err != nil {
		return err
	}
	for _, src := range sources {
		logger.Info("registered source", "name", src.Name, "kind", src.Kind.String())
	}

	logger.Info("opening database", "path", dbPath, "retention_rows", retention)
	st, err := store.Open(dbPath, retention)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	loop, err := eventloop.New(sources, eventloop.Config{
		Store:         st,
		KernelDecoder: decoder,
		Logger:        logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build event loop", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("ingesting", "sources", len(sources))
	if err := loop.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "ingestion failed", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// discoverSources assembles the inventory: socket-activated datagram
// sockets plus the kernel device when the platform exposes one. An
// empty inventory is a refused start, not a quietly idle daemon.
func discoverSources(opts *RunOptions, logger *slog.Logger) ([]source.Source, func([]byte) []*record.Record, error) {
	if opts.Sources != nil {
		return opts.Sources, opts.KernelDecoder, nil
	}

	sources, err := source.FromEnvironment()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "socket activation discovery failed", err)
	}

	var decoder func([]byte) []*record.Record
	reader, err := klog.Open()
	switch {
	case err != nil:
		// Unreadable is a degraded start (e.g. insufficient privileges),
		// absence of the device is not even that.
		logger.Warn("kernel log device unavailable", "error", err)
	case reader != nil:
		sources = append(sources, source.Source{
			Name: klog.SourceName,
			Kind: source.KernelDevice,
			FD:   reader.FD(),
		})
		decoder = reader.Decode
	}

	if len(sources) == 0 {
		return nil, nil, NewExitError(ExitCommandError,
			"no log sources available: socket activation environment is empty and no kernel device is present")
	}
	return sources, decoder, nil
}
