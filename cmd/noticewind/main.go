// Package main is the entry point for the noticewind presenter daemon.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dickwu/noticewin/internal/daemon"
	"github.com/dickwu/noticewin/internal/display"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/noticewin/config.toml)")
	presenterCmd := flag.String("presenter", "", "Command run per window; receives the message as JSON on stdin and placement via NOTICEWIN_* env vars")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	printEvents := flag.Bool("print-events", false, "Log every queue event")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		println("noticewind version", version)
		os.Exit(0)
	}

	// Set up structured logging
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *presenterCmd == "" {
		logger.Error("no presenter command given, use -presenter")
		os.Exit(1)
	}

	logger.Info("starting noticewind", "version", version)

	surface := display.NewExecSurface(*presenterCmd, logger)

	d, err := daemon.New(daemon.Options{
		ConfigPath: *configPath,
		Surface:    surface,
		Screen:     screenFromEnv,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	// Presenter exits flow back into the queue as closure reports.
	surface.SetOnClosed(func(id string) {
		if err := d.Display().HandleClosed(id); err != nil {
			logger.Warn("failed to handle window closure", "id", id, "error", err)
		}
	})

	if *printEvents {
		go func() {
			for ev := range d.Queue().Subscribe() {
				current := ""
				if ev.Current != nil {
					current = ev.Current.ID
				}
				logger.Info("queue event", "previous", ev.Previous, "current", current)
			}
		}()
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

// screenFromEnv reads display metrics from NOTICEWIN_SCREEN_WIDTH/HEIGHT.
// Returns zero when unset, which makes the layout fall back to the configured
// resolution.
func screenFromEnv() display.Screen {
	w, _ := strconv.Atoi(os.Getenv("NOTICEWIN_SCREEN_WIDTH"))
	h, _ := strconv.Atoi(os.Getenv("NOTICEWIN_SCREEN_HEIGHT"))
	return display.Screen{Width: w, Height: h}
}
