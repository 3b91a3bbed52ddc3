package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
)

type screenshotInput struct {
	Selector string `json:"selector,omitempty"`
	FullPage bool   `json:"fullPage,omitempty"`
}

// Screenshot implements the "screenshot" operation, writing a PNG into the
// execution's artifacts directory.
type Screenshot struct{}

func (Screenshot) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	var in screenshotInput
	if len(raw) > 0 {
		if err := unmarshalStrict(raw, &in); err != nil {
			return nil, dispatch.Wrap(dispatch.CodeJSON, "decoding screenshot input", err)
		}
	}
	return in, nil
}

func (Screenshot) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	in := resolved.(screenshotInput)

	req := ctx.SessionTemplate
	req.PreferredURL = ctx.State.LastURL()
	handle, err := ctx.Broker.Session(ctx.Context, req)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeBrowserLaunch, "acquiring session", err)
	}
	defer handle.Close()

	quality := 90
	var imgData []byte

	if in.Selector != "" {
		el, err := handle.Page().Timeout(defaultActionTimeout).Element(in.Selector)
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeSelectorNotFound, "locating element", err).WithDetails(in.Selector)
		}
		imgData, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, quality)
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeInternal, "capturing element screenshot", err)
		}
	} else {
		imgData, err = handle.Page().Screenshot(in.FullPage, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatPng,
			Quality: &quality,
		})
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeInternal, "capturing screenshot", err)
		}
	}

	dir := ctx.ArtifactsDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeIO, "creating artifacts directory", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot-%s.png", time.Now().UTC().Format("20060102T150405Z")))
	if err := os.WriteFile(path, imgData, 0o644); err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeIO, "writing screenshot", err)
	}

	return dispatch.Outcome{
		Inputs:    in,
		Data:      map[string]any{"path": path},
		Artifacts: []dispatch.Artifact{{Kind: "screenshot", Path: path}},
	}, nil
}
