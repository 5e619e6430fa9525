package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setNameCmd)
}

var setNameCmd = &cobra.Command{
	Use:   "set-name <name>",
	Short: "Set the daemon's username",
	Long: `Set the username this daemon advertises on the network.

The name is set once per daemon lifetime; restart the daemon to pick a
new one. On success the assigned full id is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetName,
}

func runSetName(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	userID, err := c.SetUsername(args[0])
	if err != nil {
		return fmt.Errorf("set name: %w", err)
	}

	fmt.Printf("Username set. Your id: %s\n", userID)
	return nil
}
