package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schovi/screenrec/internal/capture"
	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/encoder"
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/logging"
	"github.com/schovi/screenrec/internal/session"
	"github.com/spf13/cobra"
)

const daemonLogName = "daemon.log"

var daemonLogFileFlag string

var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the screenrec daemon (internal)",
	Hidden: true,
	RunE:   runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonLogFileFlag, "log-file", "",
		"Write daemon logs to this file (default: <socket dir>/daemon.log, '-' for stderr)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	var logOut io.Writer = os.Stderr
	if daemonLogFileFlag != "-" {
		path := daemonLogFileFlag
		if path == "" {
			path = filepath.Join(cfg.SocketDir, daemonLogName)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(logOut, cfg.LogLevel)

	factory := encoder.NewFactory(encoder.Options{
		Binary:  cfg.FFmpegPath,
		Display: cfg.Display,
		Logger:  logger,
	})
	controller := session.NewController(
		session.NewMachine(factory, session.WithMachineLogger(logger)),
		session.WithCountdown(cfg.CountdownTicks, cfg.CountdownInterval),
		session.WithFinalizeTimeout(cfg.FinalizeTimeout),
		session.WithLogger(logger),
	)

	socketDir := cfg.SocketDir
	display := cfg.Display
	server, err := daemon.NewServer(controller,
		daemon.WithSocketDir(socketDir),
		daemon.WithLibrary(library.New(cfg.RecordingsDir)),
		daemon.WithGrantSource(func() (session.Grant, error) {
			g, err := capture.Request(capture.Options{LockDir: socketDir, Display: display, Logger: logger})
			if err != nil {
				return nil, err
			}
			return g, nil
		}),
		daemon.WithDefaults(cfg.Video(), cfg.AudioSource()),
		daemon.WithFinalizeTimeout(cfg.FinalizeTimeout),
		daemon.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down daemon", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.FinalizeTimeout)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}
