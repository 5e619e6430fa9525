// Package cli implements the localchat command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"localchat.dev/go/localchat/internal/client"
	"localchat.dev/go/localchat/internal/config"
)

var (
	version = "dev"

	socketFlag string
)

// SetVersion sets the version shown by the version command and advertised
// over mDNS.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "localchat",
	Short: "Serverless chat for the local network",
	Long: `localchat - serverless chat for the local network

Peers find each other via mDNS and exchange messages directly over TCP.
The background daemon does the networking; this CLI and other front-ends
drive it over a local socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "daemon socket path (default: platform-specific)")
}

// connect dials the daemon, honoring the --socket override.
func connect() (*client.Client, error) {
	path := socketFlag
	if path == "" {
		paths, err := config.GetPaths()
		if err != nil {
			return nil, fmt.Errorf("get paths: %w", err)
		}
		if cfg, err := config.Load(); err == nil {
			paths.ResolveSocketPath(cfg)
		}
		path = paths.SocketPath
	}

	c, err := client.ConnectTo(path)
	if err != nil {
		return nil, fmt.Errorf("daemon not running. Start with: localchat daemon start (%w)", err)
	}
	return c, nil
}
