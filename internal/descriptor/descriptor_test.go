package descriptor

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	d := Descriptor{
		SchemaVersion: CurrentSchemaVersion,
		Browser:       "chromium",
		Headless:      true,
		CDPEndpoint:   "http://127.0.0.1:9222",
		WorkspaceID:   "abc123",
		Namespace:     "default",
		SessionKey:    "abc123:default:chromium:headless",
		DriverHash:    "driver-v1",
		PID:           1,
		CreatedAt:     time.Now().Unix(),
	}
	if err := Save(path, d); err != nil {
		t.Fatal(err)
	}

	loaded, ok, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected descriptor to be found")
	}
	if loaded != d {
		t.Errorf("round-trip mismatch: %+v != %+v", loaded, d)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, ok, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestEndpointPrefersCDP(t *testing.T) {
	d := Descriptor{CDPEndpoint: "http://cdp", WSEndpoint: "ws://ws"}
	if got := d.Endpoint(); got != "http://cdp" {
		t.Errorf("expected cdp endpoint to win, got %q", got)
	}
	d2 := Descriptor{WSEndpoint: "ws://ws"}
	if got := d2.Endpoint(); got != "ws://ws" {
		t.Errorf("expected ws endpoint fallback, got %q", got)
	}
}

func TestMatchesDriverRequiresNonemptyHash(t *testing.T) {
	d := Descriptor{DriverHash: "v1"}
	if !d.MatchesDriver("v1") {
		t.Error("expected matching hash to report true")
	}
	if d.MatchesDriver("v2") {
		t.Error("expected mismatched hash to report false")
	}
	if (Descriptor{}).MatchesDriver("") {
		t.Error("expected empty hash to never match")
	}
}

func TestIsAliveFalseForNonexistentPID(t *testing.T) {
	d := Descriptor{PID: 0, CDPEndpoint: "http://127.0.0.1:1"}
	if d.IsAlive(context.Background()) {
		t.Error("expected pid 0 to never be alive")
	}
}
