package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schovi/screenrec/internal/daemon"
	"github.com/spf13/cobra"
)

const eventsPollInterval = 200 * time.Millisecond

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show session events",
	Long: `Show state changes, countdown ticks, saved files and errors reported by
the daemon. With --follow, keep printing new events until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var (
	eventsFollowFlag bool
	eventsCursorFlag int64
	eventsLimitFlag  int
	eventsJsonFlag   bool
)

func init() {
	eventsCmd.Flags().BoolVarP(&eventsFollowFlag, "follow", "f", false, "Keep printing new events")
	eventsCmd.Flags().Int64Var(&eventsCursorFlag, "cursor", 0, "Start at this sequence number")
	eventsCmd.Flags().IntVar(&eventsLimitFlag, "limit", 0, "Max events per read (default: daemon limit)")
	eventsCmd.Flags().BoolVar(&eventsJsonFlag, "json", false, "Print one JSON object per event")
}

func runEvents(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cursor := eventsCursorFlag
	for {
		page, err := client.Events(cursor, eventsLimitFlag)
		if err != nil {
			return err
		}
		for _, e := range page.Events {
			if err := printEvent(os.Stdout, e); err != nil {
				return err
			}
		}
		cursor = page.Next

		if len(page.Events) > 0 && eventsLimitFlag > 0 && len(page.Events) == eventsLimitFlag {
			continue
		}
		if !eventsFollowFlag {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(eventsPollInterval):
		}
	}
}

func printEvent(w io.Writer, e daemon.EventRecord) error {
	if eventsJsonFlag {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	stamp := dimStyle.Render(e.Time.Format("15:04:05"))
	switch e.Type {
	case "state_changed":
		fmt.Fprintf(w, "%s %s -> %s\n", stamp, styleState(e.From), styleState(e.To))
	case "countdown_tick":
		fmt.Fprintf(w, "%s countdown %d\n", stamp, e.Remaining)
	case "artifact":
		if e.Artifact != nil {
			fmt.Fprintf(w, "%s saved %s\n", stamp, pathStyle.Render(e.Artifact.Path))
		}
	case "error":
		fmt.Fprintf(w, "%s %s %s\n", stamp, errorStyle.Render(e.Code), e.Error)
	default:
		fmt.Fprintf(w, "%s %s\n", stamp, e.Type)
	}
	return nil
}
