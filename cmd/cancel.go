package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a countdown before recording starts",
	Long:  `Cancel the pending recording during its countdown. If capture is already running it is stopped and the file is kept, as with stop.`,
	Args:  cobra.NoArgs,
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	if _, err := client.Cancel(); err != nil {
		return err
	}

	fmt.Println("Cancelled")
	return nil
}
