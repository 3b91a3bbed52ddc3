package contextstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/rebelnerd/pwcli/internal/target"
	"github.com/rebelnerd/pwcli/internal/workspace"
)

// Delta is the context update a command applies on success.
type Delta struct {
	URL      string
	Selector string
	Output   string
}

// State is the runtime manager for a profile's persistent context. It
// auto-latches a refresh flag when the loaded cache is stale, so resolvers
// ignore cached URL/selector until fresh data is recorded.
type State struct {
	loaded           LoadedState
	scope            workspace.Scope
	baseURLOverride  string
	noContext        bool
	noSave           bool
	refresh          bool
}

// NewState loads state for scope and wraps it in a State. refresh, if true,
// forces the refresh flag regardless of cache staleness.
func NewState(scope workspace.Scope, baseURLOverride string, noContext, noSave, refresh bool) (*State, error) {
	loaded, err := Load(scope)
	if err != nil {
		return nil, err
	}
	isStale := loaded.Cache.IsStale(DefaultSessionTimeoutSecs * time.Second)
	return &State{
		loaded:          loaded,
		scope:           scope,
		baseURLOverride: baseURLOverride,
		noContext:       noContext,
		noSave:          noSave,
		refresh:         refresh || isStale,
	}, nil
}

func (s *State) WorkspaceID() string { return s.scope.WorkspaceID() }
func (s *State) Profile() string     { return s.scope.Profile() }
func (s *State) ProfileID() string   { return s.scope.ProfileID() }

func (s *State) SessionKey(browser workspace.BrowserKind, headless bool) string {
	return s.scope.SessionKey(browser, headless)
}

// SessionDescriptorPath returns the on-disk descriptor path, or "" when
// context usage is disabled for this invocation.
func (s *State) SessionDescriptorPath() string {
	if s.noContext {
		return ""
	}
	return s.loaded.Paths.SessionDescriptor
}

func (s *State) RefreshRequested() bool { return s.refresh }

// HasContextURL reports whether a URL is resolvable without an explicit
// --url flag: an override, a fresh cached URL, or a configured base URL.
func (s *State) HasContextURL() bool {
	if s.noContext {
		return false
	}
	if s.baseURLOverride != "" {
		return true
	}
	return (!s.refresh && s.loaded.Cache.LastURL != "") || s.loaded.Config.Defaults.BaseURL != ""
}

// ResolveSelector returns provided if set; else, unless refresh is latched,
// the cached last selector; else fallback; else an error.
func (s *State) ResolveSelector(provided, fallback string) (string, error) {
	if provided != "" {
		return provided, nil
	}
	if s.noContext {
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("selector is required when context usage is disabled")
	}
	if !s.refresh && s.loaded.Cache.LastSelector != "" {
		return s.loaded.Cache.LastSelector, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no selector available")
}

func (s *State) CDPEndpoint() string {
	if s.noContext {
		return ""
	}
	return s.loaded.Config.Defaults.CDPEndpoint
}

// Headless returns the configured default, false if none was set.
func (s *State) Headless() bool {
	if s.noContext || s.loaded.Config.Defaults.Headless == nil {
		return false
	}
	return *s.loaded.Config.Defaults.Headless
}

func (s *State) LastURL() string {
	if s.noContext {
		return ""
	}
	return s.loaded.Cache.LastURL
}

func (s *State) SetCDPEndpoint(endpoint string) {
	if s.noSave || s.noContext {
		return
	}
	s.loaded.Config.Defaults.CDPEndpoint = endpoint
}

func (s *State) ProtectedURLs() []string {
	if s.noContext {
		return nil
	}
	return s.loaded.Config.ProtectedURLs
}

func (s *State) HarDefaults() *HarDefaults {
	if s.noContext {
		return nil
	}
	return s.loaded.Config.Har
}

// SetHarDefaults persists har and reports whether it changed the prior value.
func (s *State) SetHarDefaults(har HarDefaults) bool {
	if s.noSave || s.noContext {
		return false
	}
	changed := s.loaded.Config.Har == nil || *s.loaded.Config.Har != har
	s.loaded.Config.Har = &har
	return changed
}

// ClearHarDefaults removes any persisted HAR defaults, reporting whether one was present.
func (s *State) ClearHarDefaults() bool {
	if s.noSave || s.noContext {
		return false
	}
	had := s.loaded.Config.Har != nil
	s.loaded.Config.Har = nil
	return had
}

// IsProtected reports whether url contains any protected pattern, case-insensitively.
func (s *State) IsProtected(url string) bool {
	lower := strings.ToLower(url)
	for _, pattern := range s.ProtectedURLs() {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// AddProtected appends pattern to the protected-URL list iff it isn't
// already present (case-insensitive), preserving insertion order.
func (s *State) AddProtected(pattern string) bool {
	if s.noSave || s.noContext {
		return false
	}
	lower := strings.ToLower(pattern)
	for _, existing := range s.loaded.Config.ProtectedURLs {
		if strings.ToLower(existing) == lower {
			return false
		}
	}
	s.loaded.Config.ProtectedURLs = append(s.loaded.Config.ProtectedURLs, pattern)
	return true
}

// RemoveProtected removes pattern (case-insensitive match), reporting whether anything was removed.
func (s *State) RemoveProtected(pattern string) bool {
	if s.noSave || s.noContext {
		return false
	}
	lower := strings.ToLower(pattern)
	kept := s.loaded.Config.ProtectedURLs[:0]
	removed := false
	for _, existing := range s.loaded.Config.ProtectedURLs {
		if strings.ToLower(existing) == lower {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	s.loaded.Config.ProtectedURLs = kept
	return removed
}

// ApplyDelta writes the delta's nonempty fields into the cache and always
// refreshes LastUsedAt, even for an empty delta. This always runs when
// context is in use, independent of no_save: no_save only suppresses the
// eventual Persist, since RunBatch reuses the same State across batch
// lines and resolve_selector depends on the in-memory cache staying current.
func (s *State) ApplyDelta(delta Delta) {
	if s.noContext {
		return
	}
	if delta.URL != "" {
		s.loaded.Cache.LastURL = delta.URL
	}
	if delta.Selector != "" {
		s.loaded.Cache.LastSelector = delta.Selector
	}
	if delta.Output != "" {
		s.loaded.Cache.LastOutput = delta.Output
	}
	now := time.Now().Unix()
	s.loaded.Cache.LastUsedAt = &now
}

// RecordFromTarget applies a delta derived from a resolved navigation target.
func (s *State) RecordFromTarget(resolved target.Resolved, selector string) {
	s.ApplyDelta(Delta{URL: resolved.URLString(), Selector: selector})
}

// Persist writes config.json/cache.json unless no_save or no_context are set.
func (s *State) Persist() error {
	if s.noSave || s.noContext {
		return nil
	}
	return s.loaded.Save(s.scope)
}

// BaseURL returns the effective base URL: an override, else the persisted default.
func (s *State) BaseURL() string {
	if s.baseURLOverride != "" {
		return s.baseURLOverride
	}
	return s.loaded.Config.Defaults.BaseURL
}

func (s *State) Loaded() *LoadedState { return &s.loaded }
func (s *State) Scope() workspace.Scope { return s.scope }
