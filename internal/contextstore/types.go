// Package contextstore implements the per-profile durable config and
// ephemeral cache that let successive CLI invocations share URL, selector,
// and output defaults.
package contextstore

import (
	"time"

	"github.com/rebelnerd/pwcli/internal/workspace"
)

// SchemaVersion is the current on-disk schema for config/cache/secrets files.
const SchemaVersion = 2

// DefaultSessionTimeoutSecs is the staleness TTL applied when none is configured.
const DefaultSessionTimeoutSecs = 3600

// Defaults holds settings applied when no profile override exists.
type Defaults struct {
	Browser     workspace.BrowserKind `json:"browser,omitempty"`
	Headless    *bool                 `json:"headless,omitempty"`
	BaseURL     string                `json:"baseUrl,omitempty"`
	CDPEndpoint string                `json:"cdpEndpoint,omitempty"`
}

// ProfileConfig carries profile-specific configuration overrides.
type ProfileConfig struct {
	BaseURL  string                `json:"baseUrl,omitempty"`
	Browser  workspace.BrowserKind `json:"browser,omitempty"`
	Headless *bool                 `json:"headless,omitempty"`
}

// HarDefaults projects persisted HAR recording preferences.
type HarDefaults struct {
	Path          string `json:"path"`
	ContentPolicy string `json:"contentPolicy,omitempty"`
	Mode          string `json:"mode,omitempty"`
	OmitContent   bool   `json:"omitContent,omitempty"`
	URLFilter     string `json:"urlFilter,omitempty"`
}

// CliConfig is the durable, profile-scoped configuration document
// (config.json in the on-disk layout).
type CliConfig struct {
	Schema        int                      `json:"schema"`
	Defaults      Defaults                 `json:"defaults"`
	Profiles      map[string]ProfileConfig `json:"profiles,omitempty"`
	ProtectedURLs []string                 `json:"protectedUrls,omitempty"`
	Har           *HarDefaults             `json:"har,omitempty"`
}

// NewCliConfig returns a config stamped with the current schema version.
func NewCliConfig() CliConfig {
	return CliConfig{Schema: SchemaVersion}
}

// Merge folds other into c; fields set on other override c's, profiles and
// protected URL patterns are unioned (insertion order preserved for the
// latter).
func (c *CliConfig) Merge(other CliConfig) {
	if other.Defaults.Browser != "" {
		c.Defaults.Browser = other.Defaults.Browser
	}
	if other.Defaults.Headless != nil {
		c.Defaults.Headless = other.Defaults.Headless
	}
	if other.Defaults.BaseURL != "" {
		c.Defaults.BaseURL = other.Defaults.BaseURL
	}
	if other.Defaults.CDPEndpoint != "" {
		c.Defaults.CDPEndpoint = other.Defaults.CDPEndpoint
	}

	if len(other.Profiles) > 0 {
		if c.Profiles == nil {
			c.Profiles = make(map[string]ProfileConfig, len(other.Profiles))
		}
		for name, p := range other.Profiles {
			c.Profiles[name] = p
		}
	}

	for _, url := range other.ProtectedURLs {
		if !containsString(c.ProtectedURLs, url) {
			c.ProtectedURLs = append(c.ProtectedURLs, url)
		}
	}

	if other.Har != nil {
		c.Har = other.Har
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// CliCache is the ephemeral, profile-scoped session cache (cache.json).
type CliCache struct {
	Schema        int    `json:"schema"`
	ActiveProfile string `json:"activeProfile,omitempty"`
	LastURL       string `json:"lastUrl,omitempty"`
	LastSelector  string `json:"lastSelector,omitempty"`
	LastOutput    string `json:"lastOutput,omitempty"`
	LastUsedAt    *int64 `json:"lastUsedAt,omitempty"`
}

// NewCliCache returns a cache stamped with the current schema version.
func NewCliCache() CliCache {
	return CliCache{Schema: SchemaVersion}
}

// IsStale reports whether LastUsedAt is older than timeout. A cache with no
// LastUsedAt recorded is never stale.
func (c CliCache) IsStale(timeout time.Duration) bool {
	if c.LastUsedAt == nil {
		return false
	}
	age := time.Since(time.Unix(*c.LastUsedAt, 0))
	return age > timeout
}

// ClearSession drops the URL/selector/output triple but preserves
// ActiveProfile and LastUsedAt.
func (c *CliCache) ClearSession() {
	c.LastURL = ""
	c.LastSelector = ""
	c.LastOutput = ""
}

// CliSecrets is the global, workspace-state-root-scoped store of named auth
// file paths; not part of the original spec's entity list, supplemented from
// the original implementation. No code in this module reads or writes it.
type CliSecrets struct {
	Schema    int               `json:"schema"`
	AuthFiles map[string]string `json:"authFiles,omitempty"`
}

// NewCliSecrets returns a secrets document stamped with the current schema version.
func NewCliSecrets() CliSecrets {
	return CliSecrets{Schema: SchemaVersion}
}
