package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"localchat.dev/go/localchat/internal/protocol"
)

var listenName string

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&listenName, "name", "", "set this username before listening")
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print incoming messages as they arrive",
	Long: `Attach to the daemon and print incoming messages.

Only one front-end receives messages at a time; attaching takes over
from any previously connected front-end. Interrupt to stop.`,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	if listenName != "" {
		userID, err := c.SetUsername(listenName)
		if err != nil {
			return fmt.Errorf("set name: %w", err)
		}
		fmt.Printf("Listening as %s\n", userID)
	} else {
		fmt.Println("Listening for messages...")
	}

	for {
		msg, err := c.Next()
		if err != nil {
			return fmt.Errorf("connection to daemon lost: %w", err)
		}

		switch m := msg.(type) {
		case protocol.NewMessageEvent:
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.Sender, m.Content)
		case protocol.ErrorReply:
			fmt.Printf("daemon error: %s\n", string(m))
		default:
			// Status updates and command replies for other sessions are not
			// expected here; ignore anything unrecognized.
		}
	}
}
