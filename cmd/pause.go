package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active recording",
	Args:  cobra.NoArgs,
	RunE:  runPause,
}

func runPause(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	st, err := client.Pause()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styleState(string(st.State)), dimStyle.Render(st.OutputPath))
	return nil
}
