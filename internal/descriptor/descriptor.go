// Package descriptor implements the on-disk Session Descriptor: a handle to
// a live browser session that survives across CLI processes, with a
// liveness probe combining a PID check and an endpoint round-trip.
package descriptor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ProbeTimeout bounds the liveness HTTP probe.
const ProbeTimeout = 400 * time.Millisecond

// Descriptor is the persisted record of a live browser session.
type Descriptor struct {
	SchemaVersion int    `json:"schemaVersion"`
	Browser       string `json:"browser"`
	Headless      bool   `json:"headless"`
	CDPEndpoint   string `json:"cdpEndpoint,omitempty"`
	WSEndpoint    string `json:"wsEndpoint,omitempty"`
	WorkspaceID   string `json:"workspaceId"`
	Namespace     string `json:"namespace"`
	SessionKey    string `json:"sessionKey"`
	DriverHash    string `json:"driverHash"`
	PID           int    `json:"pid"`
	CreatedAt     int64  `json:"createdAt"`
}

// CurrentSchemaVersion is stamped onto descriptors written by this build.
const CurrentSchemaVersion = 1

// Load reads a descriptor from path. A missing file is not an error; the
// zero Descriptor is returned with ok=false.
func Load(path string) (d Descriptor, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, false, nil
		}
		return Descriptor{}, false, err
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

// Save writes d to path, creating parent directories as needed.
func Save(path string, d Descriptor) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Endpoint returns whichever of CDPEndpoint/WSEndpoint is set, preferring
// CDPEndpoint; an "alive" descriptor has at least one.
func (d Descriptor) Endpoint() string {
	if d.CDPEndpoint != "" {
		return d.CDPEndpoint
	}
	return d.WSEndpoint
}

// MatchesDriver reports whether d's DriverHash matches the currently
// installed driver's fingerprint; a mismatch means the descriptor is stale
// regardless of liveness.
func (d Descriptor) MatchesDriver(currentDriverHash string) bool {
	return d.DriverHash != "" && d.DriverHash == currentDriverHash
}

// IsAlive reports whether the descriptor's PID exists and its endpoint
// responds to a version probe within ProbeTimeout. Neither check alone is
// sufficient: a PID can be reused by an unrelated process, and a port can be
// squatted on by something that isn't the expected browser.
func (d Descriptor) IsAlive(ctx context.Context) bool {
	if !pidExists(d.PID) {
		return false
	}
	endpoint := d.Endpoint()
	if endpoint == "" {
		return false
	}
	return probeVersion(ctx, endpoint)
}

func probeVersion(ctx context.Context, endpoint string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DriverHash fingerprints the driver binary at path (by its path, size and
// modification time) so descriptors become invalid after a driver upgrade.
func DriverHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().Unix()), nil
}
