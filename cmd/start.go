package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/session"
	"github.com/schovi/screenrec/internal/wait"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start recording the screen",
	Long: `Start a recording. A countdown runs first (3 ticks by default), then the
daemon acquires the screen and starts ffmpeg. Only one recording can be
active at a time.

Examples:
  screenrec start
  screenrec start --countdown 0 --quality 1080p
  screenrec start --audio both --output ~/demo.mp4 --wait`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var (
	startAudioFlag     string
	startQualityFlag   string
	startOutputFlag    string
	startCountdownFlag int
	startWaitFlag      bool
	startTimeoutFlag   int
	startJsonFlag      bool
)

func init() {
	startCmd.Flags().StringVar(&startAudioFlag, "audio", "", "Audio source: none, microphone, device, both (default from config)")
	startCmd.Flags().StringVar(&startQualityFlag, "quality", "", "Quality preset: 480p, 720p, 1080p (default from config)")
	startCmd.Flags().StringVarP(&startOutputFlag, "output", "o", "", "Output file (default: timestamped file in the recordings dir)")
	startCmd.Flags().IntVar(&startCountdownFlag, "countdown", 0, "Countdown ticks before recording (default from config)")
	startCmd.Flags().BoolVar(&startWaitFlag, "wait", false, "Wait until the countdown ends and capture is running")
	startCmd.Flags().IntVar(&startTimeoutFlag, "timeout", 30, "Max seconds to wait with --wait")
	startCmd.Flags().BoolVar(&startJsonFlag, "json", false, "Output as JSON")
}

func runStart(cmd *cobra.Command, args []string) error {
	opts := daemon.StartOptions{
		Audio:   startAudioFlag,
		Quality: startQualityFlag,
		Output:  startOutputFlag,
	}
	if cmd.Flags().Changed("countdown") {
		if startCountdownFlag < 0 {
			return fmt.Errorf("--countdown must not be negative")
		}
		opts.Countdown = &startCountdownFlag
	}

	client, err := connect()
	if err != nil {
		return err
	}

	st, err := client.Start(opts)
	if err != nil {
		return err
	}

	if startWaitFlag && st.State == session.StateCountdown {
		st, err = wait.ForState(client.Status, wait.Config{
			States:     []session.State{session.StateRecording, session.StateIdle},
			TimeoutSec: startTimeoutFlag,
			OnChange: func(s session.Status) {
				if s.State == session.StateCountdown && !startJsonFlag {
					fmt.Printf("%s\n", warningStyle.Render(fmt.Sprintf("%d...", s.CountdownRemaining)))
				}
			},
		})
		if err != nil {
			return err
		}
		if st.State == session.StateIdle {
			return fmt.Errorf("recording did not start; run 'screenrec events' for details")
		}
	}

	if startJsonFlag {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	switch st.State {
	case session.StateCountdown:
		fmt.Printf("Recording starts in %d %s\n", st.CountdownRemaining, dimStyle.Render("-> "+st.OutputPath))
	default:
		fmt.Printf("%s %s\n", errorStyle.Render("Recording"), pathStyle.Render(st.OutputPath))
	}
	return nil
}
