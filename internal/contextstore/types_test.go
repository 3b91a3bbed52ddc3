package contextstore

import (
	"testing"
	"time"
)

func TestConfigMerge(t *testing.T) {
	trueVal := true
	falseVal := false

	base := CliConfig{
		Defaults: Defaults{
			Browser:     "chromium",
			Headless:    &trueVal,
			BaseURL:     "https://base.com",
			CDPEndpoint: "",
		},
		Profiles:      map[string]ProfileConfig{"dev": {}},
		ProtectedURLs: []string{"admin"},
	}

	project := CliConfig{
		Defaults: Defaults{
			Headless:    &falseVal,
			BaseURL:     "https://project.com",
			CDPEndpoint: "ws://localhost:9222",
		},
		Profiles:      map[string]ProfileConfig{"staging": {BaseURL: "https://staging.com"}},
		ProtectedURLs: []string{"settings"},
	}

	base.Merge(project)

	if base.Defaults.Browser != "chromium" {
		t.Errorf("expected browser unchanged, got %q", base.Defaults.Browser)
	}
	if base.Defaults.Headless == nil || *base.Defaults.Headless != false {
		t.Error("expected headless overridden to false")
	}
	if base.Defaults.BaseURL != "https://project.com" {
		t.Errorf("expected base url overridden, got %q", base.Defaults.BaseURL)
	}
	if base.Defaults.CDPEndpoint != "ws://localhost:9222" {
		t.Errorf("expected cdp endpoint added, got %q", base.Defaults.CDPEndpoint)
	}
	if _, ok := base.Profiles["dev"]; !ok {
		t.Error("expected dev profile to survive merge")
	}
	if _, ok := base.Profiles["staging"]; !ok {
		t.Error("expected staging profile to be added")
	}
	if !containsString(base.ProtectedURLs, "admin") || !containsString(base.ProtectedURLs, "settings") {
		t.Errorf("expected both protected urls present, got %v", base.ProtectedURLs)
	}
}

func TestCacheStaleness(t *testing.T) {
	now := time.Now().Unix()
	fresh := CliCache{LastUsedAt: &now}
	if fresh.IsStale(3600 * time.Second) {
		t.Error("fresh cache should not be stale")
	}

	epoch := int64(0)
	stale := CliCache{LastUsedAt: &epoch}
	if !stale.IsStale(3600 * time.Second) {
		t.Error("epoch-timestamped cache should be stale")
	}

	noTimestamp := CliCache{}
	if noTimestamp.IsStale(3600 * time.Second) {
		t.Error("cache with no timestamp should never be stale")
	}
}

func TestCacheClearSession(t *testing.T) {
	ts := int64(12345)
	cache := CliCache{
		ActiveProfile: "dev",
		LastURL:       "https://example.com",
		LastSelector:  "#button",
		LastOutput:    "screenshot.png",
		LastUsedAt:    &ts,
	}

	cache.ClearSession()

	if cache.ActiveProfile != "dev" {
		t.Error("expected active profile preserved")
	}
	if cache.LastURL != "" || cache.LastSelector != "" || cache.LastOutput != "" {
		t.Error("expected session fields cleared")
	}
	if cache.LastUsedAt == nil || *cache.LastUsedAt != 12345 {
		t.Error("expected last_used_at preserved")
	}
}
