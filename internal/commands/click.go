package commands

import (
	"encoding/json"

	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
)

type clickInput struct {
	Selector string `json:"selector"`
}

// Click implements the "click" operation.
type Click struct{}

func (Click) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	var in clickInput
	if len(raw) > 0 {
		if err := unmarshalStrict(raw, &in); err != nil {
			return nil, dispatch.Wrap(dispatch.CodeJSON, "decoding click input", err)
		}
	}
	selector, err := state.ResolveSelector(in.Selector, "")
	if err != nil {
		return nil, dispatch.Wrap(dispatch.CodeContext, "resolving selector", err)
	}
	in.Selector = selector
	return in, nil
}

func (Click) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	in := resolved.(clickInput)

	req := ctx.SessionTemplate
	req.PreferredURL = ctx.State.LastURL()
	handle, err := ctx.Broker.Session(ctx.Context, req)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeBrowserLaunch, "acquiring session", err)
	}
	defer handle.Close()

	page := handle.Page().Timeout(defaultActionTimeout)
	el, err := page.Element(in.Selector)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeSelectorNotFound, "locating element", err).WithDetails(in.Selector)
	}
	if err := el.Click("left", 1); err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeNavigationFailed, "clicking element", err)
	}

	return dispatch.Outcome{
		Inputs: in,
		Data:   map[string]any{"selector": in.Selector},
		Delta:  dispatch.ContextDelta{Selector: &in.Selector},
	}, nil
}
