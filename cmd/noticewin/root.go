// Package main provides the CLI entrypoint for noticewin.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dickwu/noticewin/internal/broadcast"
	"github.com/dickwu/noticewin/internal/config"
	"github.com/dickwu/noticewin/internal/queue"
	"github.com/dickwu/noticewin/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		storeFile  string
		configPath string
	}
	logger *slog.Logger

	// msgStore is the global durable store instance.
	msgStore *store.Store

	// queueState is built lazily: only mutation commands drive the queue,
	// read-only commands go straight to the store.
	queueState *queue.State
	stateBus   *broadcast.Bus
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "noticewin",
	Short: "Queue and control notification windows",
	Long: `noticewin sends messages to the notification window queue.

Messages are persisted to a durable store and presented one at a time by the
noticewind daemon. Each CLI invocation is a short-lived context: it mutates the
shared queue, broadcasts the new state, and exits.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logging
		setupLogger()

		// Load configuration
		var err error
		cfg, err = config.Load(globalOpts.configPath, logger)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		// Use custom store file path if specified, otherwise use default
		storePath := globalOpts.storeFile
		if storePath == "" {
			storePath, err = config.StorePath()
			if err != nil {
				return fmt.Errorf("failed to resolve store path: %w", err)
			}
		}

		msgStore, err = store.Open(storePath, cfg.StoreName)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if queueState != nil {
			if err := queueState.Close(); err != nil {
				logger.Warn("failed to close queue state", "error", err)
			}
		}
		if msgStore != nil {
			return msgStore.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.storeFile, "store-file", "",
		"Path to message store (default: ~/.local/share/noticewin/messages.db)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/noticewin/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// getQueue initializes the queue state on first use. The broadcast bus is
// wired for publishing only; a short-lived CLI context never watches for
// incoming snapshots.
func getQueue() (*queue.State, error) {
	if queueState != nil {
		return queueState, nil
	}

	statePath, err := config.StatePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path: %w", err)
	}
	stateBus, err = broadcast.New(statePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast bus: %w", err)
	}

	queueState = queue.New(msgStore, logger)
	queueState.SetPublisher(stateBus.Publish)
	if err := queueState.InitializeFromStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	return queueState, nil
}
