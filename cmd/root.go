package cmd

import (
	"fmt"
	"os"

	"github.com/schovi/screenrec/internal/config"
	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/logging"
	"github.com/spf13/cobra"
)

// cfg is loaded before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "screenrec",
	Short: "Screen recorder with a background capture daemon",
	Long: `screenrec records the screen to MP4 through ffmpeg. A background daemon owns
the capture device; the CLI and the MCP server talk to it over a unix socket.

Quick start:
  screenrec start                    # 3,2,1 countdown, then record
  screenrec start --countdown 0 --audio mic --quality 1080p
  screenrec pause / resume           # Suspend and continue the capture
  screenrec stop                     # Finish the file and print where it is
  screenrec list                     # Saved recordings, newest first`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// connect returns a client for the configured daemon, starting it first
// if needed.
func connect() (*daemon.Client, error) {
	client := daemon.NewClient(cfg.SocketDir)
	if err := client.EnsureDaemon(); err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	return client, nil
}
