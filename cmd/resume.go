package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused recording",
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	st, err := client.Resume()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styleState(string(st.State)), dimStyle.Render(st.OutputPath))
	return nil
}
