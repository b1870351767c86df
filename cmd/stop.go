package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop recording and save the file",
	Long:  `Stop the active recording. ffmpeg is asked to finish the file and the capture device is released. During a countdown this cancels instead.`,
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var stopJsonFlag bool

func init() {
	stopCmd.Flags().BoolVar(&stopJsonFlag, "json", false, "Output as JSON")
}

func runStop(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	result, err := client.Stop()
	if result == nil {
		return err
	}

	if stopJsonFlag {
		out := map[string]interface{}{
			"artifact": result.Artifact,
			"status":   result.Status,
		}
		if err != nil {
			out["warning"] = err.Error()
		}
		data, mErr := json.MarshalIndent(out, "", "  ")
		if mErr != nil {
			return fmt.Errorf("marshal output: %w", mErr)
		}
		fmt.Println(string(data))
		return nil
	}

	if result.Artifact == nil {
		fmt.Println("Cancelled before recording started")
		return nil
	}
	printArtifact(os.Stdout, result.Artifact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", warningStyle.Render("warning:"), err)
	}
	return nil
}
