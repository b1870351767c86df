package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recordings",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var listFormatFlag string

func init() {
	listCmd.Flags().StringVar(&listFormatFlag, "format", formatTable, "Output format: table, json, yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := checkFormat(listFormatFlag, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}

	items, err := client.List()
	if err != nil {
		return err
	}

	if done, err := writeStructured(os.Stdout, listFormatFlag, items); done {
		return err
	}

	if len(items) == 0 {
		fmt.Println(dimStyle.Render("No recordings in " + cfg.RecordingsDir))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d recording(s) in %s", len(items), cfg.RecordingsDir)))
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCREATED\t")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", it.Name, it.HumanSize(), it.Age())
	}
	return w.Flush()
}
