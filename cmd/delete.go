package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved recording",
	Long:  `Delete a recording by the file name shown in 'screenrec list'. The file being recorded cannot be deleted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	item, err := client.Delete(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %s (%s)\n", pathStyle.Render(item.Name), item.HumanSize())
	return nil
}
