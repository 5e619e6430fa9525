package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <recipient-id> <message...>",
	Short: "Send a message to a peer",
	Long: `Send a chat message to a known peer.

The recipient id is the full id shown by 'localchat peers list',
e.g. "Alice - aB3dE5f7". The daemon must have a username set first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	recipient := args[0]
	content := strings.Join(args[1:], " ")

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	text, err := c.Send(recipient, content)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Println(text)
	return nil
}
