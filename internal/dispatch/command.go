package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rebelnerd/pwcli/internal/broker"
	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/workspace"
)

// ExecCtx bundles everything a command's Execute step may touch: the request
// context, the mutable context-store state, a broker to acquire a session
// from, the chosen output format, and where to drop failure artifacts.
type ExecCtx struct {
	Context         context.Context
	State           *contextstore.State
	Broker          *broker.Broker
	Format          string
	ArtifactsDir    string
	LastURL         string
	SessionTemplate broker.Request
}

// Command is the uniform contract every operation implements: a pure
// Resolve step that only reads context, and an effectful Execute step that
// may acquire a session and must report what it actually did.
type Command interface {
	// Resolve validates raw input against context state, producing the
	// concrete, already-defaulted form Execute will act on. It must not
	// acquire a browser or otherwise cause a side effect.
	Resolve(raw json.RawMessage, state *contextstore.State) (any, error)
	// Execute performs the command's effect and reports inputs/data/delta.
	Execute(ctx ExecCtx, resolved any) (Outcome, error)
}

// Registry maps operation names to their Command implementation.
type Registry map[string]Command

// Dispatcher runs requests through the uniform resolve/execute pipeline.
type Dispatcher struct {
	ops   Registry
	trace *Tracer
}

// NewDispatcher constructs a Dispatcher over ops, with no debug trace.
func NewDispatcher(ops Registry) *Dispatcher {
	return &Dispatcher{ops: ops}
}

// NewDispatcherWithTrace constructs a Dispatcher that additionally records
// every dispatched request to trace.
func NewDispatcherWithTrace(ops Registry, trace *Tracer) *Dispatcher {
	return &Dispatcher{ops: ops, trace: trace}
}

// Dispatch runs one request end to end: schema check, op lookup, resolve,
// execute, and on success, delta application + persistence.
func (d *Dispatcher) Dispatch(ctx ExecCtx, req Request) Response {
	start := time.Now()
	profile := ctx.State.Scope().Profile()
	if req.Runtime != nil && req.Runtime.Profile != "" {
		profile = req.Runtime.Profile
	}
	effective := &EffectiveRuntime{Profile: profile}
	if req.Runtime != nil {
		applyRuntimeOverrides(&ctx, effective, req.Runtime.Overrides)
	}

	record := func(resp Response) Response {
		evt := TraceEvent{
			Timestamp:  start,
			Op:         req.Op,
			RequestID:  req.RequestID,
			Profile:    effective.Profile,
			OK:         resp.OK,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if resp.Error != nil {
			evt.ErrorCode = string(resp.Error.Code)
		}
		d.trace.Record(evt)
		return resp
	}

	if req.SchemaVersion != SchemaVersion {
		err := NewError(CodeInvalidInput, "unsupported schema version")
		return record(errorResponse(req, err, effective))
	}

	cmd, ok := d.ops[req.Op]
	if !ok {
		err := NewError(CodeInvalidInput, "unknown operation: "+req.Op)
		return record(errorResponse(req, err, effective))
	}

	resolved, err := cmd.Resolve(req.Input, ctx.State)
	if err != nil {
		return record(errorResponse(req, AsCmdError(err), effective))
	}

	outcome, err := cmd.Execute(ctx, resolved)
	if err != nil {
		return record(errorResponse(req, AsCmdError(err), effective))
	}

	ctx.State.ApplyDelta(toStoreDelta(outcome.Delta))
	if err := ctx.State.Persist(); err != nil {
		return record(errorResponse(req, Wrap(CodeIO, "failed to persist context state", err), effective))
	}

	return record(successResponse(req, outcome, time.Since(start).Milliseconds(), effective))
}

// applyRuntimeOverrides folds a request's per-call runtime overrides into
// the session template Execute will acquire against, and mirrors what took
// effect into effective for the response's effectiveRuntime field.
func applyRuntimeOverrides(ctx *ExecCtx, effective *EffectiveRuntime, overrides map[string]any) {
	if browser, ok := overrides["browser"].(string); ok && browser != "" {
		ctx.SessionTemplate.Browser = workspace.BrowserKind(browser)
		effective.Browser = browser
	}
	if headless, ok := overrides["headless"].(bool); ok {
		ctx.SessionTemplate.Headless = headless
	}
	if endpoint, ok := overrides["cdpEndpoint"].(string); ok && endpoint != "" {
		ctx.SessionTemplate.CDPEndpoint = endpoint
		effective.CDPEndpoint = endpoint
	}
}

func toStoreDelta(delta ContextDelta) contextstore.Delta {
	var d contextstore.Delta
	if delta.URL != nil {
		d.URL = *delta.URL
	}
	if delta.Selector != nil {
		d.Selector = *delta.Selector
	}
	if delta.Output != nil {
		d.Output = *delta.Output
	}
	return d
}
