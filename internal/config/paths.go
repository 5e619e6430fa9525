package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all platform-specific file paths for localchat
type Paths struct {
	ConfigDir  string // ~/.config/localchat or equivalent
	ConfigFile string // ~/.config/localchat/config.toml
	PIDFile    string // ~/.config/localchat/daemon.pid (Linux/macOS)
	SocketPath string // /tmp/localchat_daemon.sock or equivalent
}

// GetPaths returns platform-specific paths for localchat
func GetPaths() (*Paths, error) {
	var configDir string
	var socketPath string
	var pidFile string

	// Allow override via environment variable (useful for running multiple
	// instances and for tests)
	if envConfigDir := os.Getenv(EnvConfigDir); envConfigDir != "" {
		configDir = envConfigDir
		socketPath = filepath.Join(configDir, "daemon.sock")
		pidFile = filepath.Join(configDir, "daemon.pid")
	} else {
		switch runtime.GOOS {
		case "linux", "darwin":
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "localchat")
			socketPath = "/tmp/localchat_daemon.sock"
			pidFile = filepath.Join(configDir, "daemon.pid")

		case "windows":
			appData := os.Getenv("APPDATA")
			if appData == "" {
				return nil, fmt.Errorf("APPDATA environment variable not set")
			}
			configDir = filepath.Join(appData, "localchat")

			// Named pipe on Windows
			username := os.Getenv("USERNAME")
			if username == "" {
				username = "user"
			}
			socketPath = fmt.Sprintf(`\\.\pipe\localchat-%s`, username)
			pidFile = "" // Windows uses a different mechanism

		default:
			return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
		}
	}

	// The socket-path override wins over both the platform default and the
	// config-dir derived location.
	if envSocket := os.Getenv(EnvSocketPath); envSocket != "" {
		socketPath = envSocket
	}

	return &Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "config.toml"),
		PIDFile:    pidFile,
		SocketPath: socketPath,
	}, nil
}

// ResolveSocketPath applies the config file's socket path on top of the
// platform default. LOCALCHAT_SOCKET_PATH still wins over both.
func (p *Paths) ResolveSocketPath(cfg *Config) {
	if os.Getenv(EnvSocketPath) != "" {
		return
	}
	if cfg != nil && cfg.Daemon.SocketPath != "" {
		p.SocketPath = cfg.Daemon.SocketPath
	}
}

// EnsureDirs creates the config directory if missing
func (p *Paths) EnsureDirs() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}
