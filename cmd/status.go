package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recording state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	statusJsonFlag   bool
	statusFormatFlag string
)

func init() {
	statusCmd.Flags().BoolVar(&statusJsonFlag, "json", false, "Output as JSON (same as --format json)")
	statusCmd.Flags().StringVar(&statusFormatFlag, "format", formatText, "Output format: text, json, yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format := statusFormatFlag
	if statusJsonFlag {
		format = formatJSON
	}
	if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}

	st, err := client.Status()
	if err != nil {
		return err
	}

	if done, err := writeStructured(os.Stdout, format, st); done {
		return err
	}
	printStatus(os.Stdout, st)
	return nil
}
