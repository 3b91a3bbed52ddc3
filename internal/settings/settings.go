// Package settings loads WorkspaceSettings: the checked-in, project-wide
// YAML layer that sits above per-profile JSON state and is meant to be
// committed to version control.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file's name inside the workspace's playwright/
// directory (sibling to the versioned state root, not inside it).
const FileName = "config.yaml"

// Settings carries fleet-wide defaults that are not per-profile.
type Settings struct {
	Daemon DaemonSettings `yaml:"daemon"`
	Relay  RelaySettings  `yaml:"relay"`
	Log    LogSettings    `yaml:"log"`
}

// DaemonSettings controls the long-lived browser-holding process.
type DaemonSettings struct {
	AutoStart           bool `yaml:"auto_start"`
	PortRangeStart      int  `yaml:"port_range_start"`
	PortRangeEnd        int  `yaml:"port_range_end"`
	IdleTimeoutSeconds  int  `yaml:"idle_timeout_seconds"`
	ReapIntervalSeconds int  `yaml:"reap_interval_seconds"`
}

// RelaySettings controls the CDP relay process mode.
type RelaySettings struct {
	BindAddress string `yaml:"bind_address"`
	// Token is the one-time secret the browser extension must present in
	// its hello message before the relay trusts it as the extension
	// connection. Empty disables the check, which is only appropriate for
	// local development.
	Token string `yaml:"token"`
}

// LogSettings controls structured-logging defaults shared by every
// entrypoint (CLI, daemon, relay).
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults, overlaid by Load before CLI flags
// get their turn.
func Default() Settings {
	return Settings{
		Daemon: DaemonSettings{
			AutoStart:           true,
			PortRangeStart:      9222,
			PortRangeEnd:        10221,
			IdleTimeoutSeconds:  1800,
			ReapIntervalSeconds: 300,
		},
		Relay: RelaySettings{
			BindAddress: "127.0.0.1:9223",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// IdleTimeout and ReapInterval convert the YAML's second-granularity fields
// to time.Duration for the daemon package to consume directly.
func (d DaemonSettings) IdleTimeout() time.Duration {
	return time.Duration(d.IdleTimeoutSeconds) * time.Second
}

func (d DaemonSettings) ReapInterval() time.Duration {
	return time.Duration(d.ReapIntervalSeconds) * time.Second
}

// Path returns the settings file path for a workspace root.
func Path(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, "playwright", FileName)
}

// Load reads workspaceRoot's config.yaml and overlays it onto Default(). A
// missing file is not an error: the defaults are returned as-is, matching
// the teacher's layered-merge pattern where an absent workspace config
// simply skips that layer.
func Load(workspaceRoot string) (Settings, error) {
	s := Default()

	raw, err := os.ReadFile(Path(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading workspace settings: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parsing workspace settings %s: %w", Path(workspaceRoot), err)
	}
	return s, nil
}

// Init writes a commented template config.yaml at workspaceRoot/playwright/,
// creating the directory if needed. It does not overwrite an existing file.
func Init(workspaceRoot string) error {
	path := Path(workspaceRoot)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating playwright directory: %w", err)
	}

	raw, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling default settings: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
