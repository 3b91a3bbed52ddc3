package contextstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rebelnerd/pwcli/internal/workspace"
)

// Paths enumerates the on-disk locations a profile's LoadedState reads from
// and writes to, per the workspace's on-disk layout.
type Paths struct {
	WorkspaceRoot      string
	ConfigFile         string
	CacheFile          string
	SessionDescriptor  string
	AuthDir            string
	ConnectUserDataDir string
}

// PathsFor derives Paths for a given workspace scope.
func PathsFor(scope workspace.Scope) Paths {
	dir := scope.ProfileDir()
	return Paths{
		WorkspaceRoot:      scope.Root(),
		ConfigFile:         filepath.Join(dir, "config.json"),
		CacheFile:          filepath.Join(dir, "cache.json"),
		SessionDescriptor:  filepath.Join(dir, "session.json"),
		AuthDir:            filepath.Join(dir, "auth"),
		ConnectUserDataDir: filepath.Join(dir, "connect-user-data"),
	}
}

// LoadedState is the (paths, config, cache) triple owned by a ContextState.
type LoadedState struct {
	Paths  Paths
	Config CliConfig
	Cache  CliCache
}

// Load reads config.json and cache.json for scope, defaulting either or both
// when missing.
func Load(scope workspace.Scope) (LoadedState, error) {
	paths := PathsFor(scope)

	cfg := NewCliConfig()
	if err := readJSONIfExists(paths.ConfigFile, &cfg); err != nil {
		return LoadedState{}, err
	}

	cache := NewCliCache()
	if err := readJSONIfExists(paths.CacheFile, &cache); err != nil {
		return LoadedState{}, err
	}

	return LoadedState{Paths: paths, Config: cfg, Cache: cache}, nil
}

// Save writes config.json and cache.json atomically (write-temp, then
// rename) and ensures the state root's wildcard .gitignore exists.
func (s *LoadedState) Save(scope workspace.Scope) error {
	if err := workspace.EnsureStateRootGitignore(scope.StateRoot()); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Paths.ConfigFile), 0o755); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.Paths.ConfigFile, s.Config); err != nil {
		return err
	}
	return writeJSONAtomic(s.Paths.CacheFile, s.Cache)
}

func readJSONIfExists(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func writeJSONAtomic(path string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
