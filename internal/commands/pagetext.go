package commands

import (
	"encoding/json"

	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
)

type pageTextInput struct {
	Selector string `json:"selector,omitempty"`
}

// PageText implements the "page text" operation: the selector's visible text,
// or the whole page's body text when no selector is given.
type PageText struct{}

func (PageText) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	var in pageTextInput
	if len(raw) > 0 {
		if err := unmarshalStrict(raw, &in); err != nil {
			return nil, dispatch.Wrap(dispatch.CodeJSON, "decoding page text input", err)
		}
	}
	return in, nil
}

func (PageText) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	in := resolved.(pageTextInput)

	req := ctx.SessionTemplate
	req.PreferredURL = ctx.State.LastURL()
	handle, err := ctx.Broker.Session(ctx.Context, req)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeBrowserLaunch, "acquiring session", err)
	}
	defer handle.Close()

	page := handle.Page().Timeout(defaultActionTimeout)

	var text string
	matchCount := 1
	if in.Selector != "" {
		el, err := page.Element(in.Selector)
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeSelectorNotFound, "locating element", err).WithDetails(in.Selector)
		}
		text, err = el.Text()
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeInternal, "reading element text", err)
		}
		if els, err := page.Elements(in.Selector); err == nil {
			matchCount = len(els)
		}
	} else {
		body, err := page.Element("body")
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeSelectorNotFound, "locating body", err)
		}
		text, err = body.Text()
		if err != nil {
			return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeInternal, "reading page text", err)
		}
	}

	delta := dispatch.ContextDelta{}
	if in.Selector != "" {
		delta.Selector = &in.Selector
	}
	return dispatch.Outcome{
		Inputs: in,
		Data:   map[string]any{"text": text, "matchCount": matchCount},
		Delta:  delta,
	}, nil
}
