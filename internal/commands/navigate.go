// Package commands implements the CommandDef wrappers the CLI tree dispatches
// through: navigate, click, fill, page text, screenshot, and auth. Each pairs
// a pure Resolve step (context-aware validation) with an Execute step that
// acquires a session from the broker and performs one browser action.
package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
	"github.com/rebelnerd/pwcli/internal/target"
)

const defaultActionTimeout = 30 * time.Second

type navigateInput struct {
	URL string `json:"url"`
}

// Navigate implements the "navigate" operation.
type Navigate struct{}

func (Navigate) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	var in navigateInput
	if len(raw) > 0 {
		if err := unmarshalStrict(raw, &in); err != nil {
			return nil, dispatch.Wrap(dispatch.CodeJSON, "decoding navigate input", err)
		}
	}
	return in, nil
}

func (Navigate) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	in := resolved.(navigateInput)

	req := ctx.SessionTemplate
	req.PreferredURL = ctx.State.LastURL()
	handle, err := ctx.Broker.Session(ctx.Context, req)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeBrowserLaunch, "acquiring session", err)
	}
	defer handle.Close()

	resolvedTarget, err := target.Resolve(in.URL, ctx.State.BaseURL(), ctx.State.LastURL(), req.CDPEndpoint != "", target.RequireUrl)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeContext, "resolving navigation target", err)
	}

	if url := resolvedTarget.URLString(); url != "" && ctx.State.IsProtected(url) {
		return dispatch.Outcome{}, dispatch.NewError(dispatch.CodeContext, fmt.Sprintf("refusing to navigate to protected URL %s", url))
	}

	if err := handle.GotoTarget(resolvedTarget, defaultActionTimeout); err != nil {
		return dispatch.Outcome{}, dispatch.WrapFailed(dispatch.CodeNavigationFailed, "navigating", err, collectFailureArtifacts(handle, ctx.ArtifactsDir, "navigate"))
	}

	title := ""
	if info, err := handle.Page().Info(); err == nil {
		title = info.Title
	}

	urlStr := resolvedTarget.URLString()
	return dispatch.Outcome{
		Inputs: in,
		Data:   map[string]any{"url": urlStr, "title": title},
		Delta:  dispatch.ContextDelta{URL: &urlStr},
	}, nil
}
