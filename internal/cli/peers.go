package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(peersCmd)

	peersCmd.AddCommand(peersListCmd)
	peersCmd.AddCommand(peersClearCmd)
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Peer commands",
	Long: `Inspect the daemon's view of the local network.

Peers are discovered automatically via mDNS; they appear here once
another localchat daemon on the network has set a username.`,
}

var peersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known peers",
	RunE:  runPeersList,
}

func runPeersList(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	peers, err := c.Peers()
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}

	if len(peers) == 0 {
		fmt.Println("No peers known.")
		fmt.Println()
		fmt.Println("Peers appear automatically once other localchat users are on the network.")
		return nil
	}

	fmt.Printf("Known Peers (%d)\n\n", len(peers))
	for _, p := range peers {
		fmt.Printf("  %s\n", p.ID)
		fmt.Printf("    %s:%d\n", p.IP, p.Port)
	}
	return nil
}

var peersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the daemon's peer cache",
	Long: `Forget all known peers.

The cache refills on the next mDNS browse pass; use this when peers
have gone stale after a network change.`,
	RunE: runPeersClear,
}

func runPeersClear(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	text, err := c.ClearPeerCache()
	if err != nil {
		return fmt.Errorf("clear peer cache: %w", err)
	}
	fmt.Println(text)
	return nil
}
