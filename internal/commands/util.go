package commands

import (
	"bytes"
	"encoding/json"

	"github.com/rebelnerd/pwcli/internal/broker"
	"github.com/rebelnerd/pwcli/internal/dispatch"
)

// unmarshalStrict rejects unknown fields, so a typo in an op's input fails
// decoding (callers report it as a JSON error) rather than being silently
// ignored.
func unmarshalStrict(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// collectFailureArtifacts best-effort captures a screenshot/HTML dump for a
// failing command and projects whatever was actually written into the
// dispatch.Artifact list a failure envelope can carry. A capture failure
// (no artifacts dir, no active page) just yields an empty list.
func collectFailureArtifacts(handle *broker.Handle, dir, command string) []dispatch.Artifact {
	if dir == "" {
		return nil
	}
	shotPath, htmlPath, err := handle.CollectFailureArtifacts(dir, command)
	if err != nil {
		return nil
	}
	var artifacts []dispatch.Artifact
	if shotPath != "" {
		artifacts = append(artifacts, dispatch.Artifact{Kind: "screenshot", Path: shotPath})
	}
	if htmlPath != "" {
		artifacts = append(artifacts, dispatch.Artifact{Kind: "html", Path: htmlPath})
	}
	return artifacts
}
