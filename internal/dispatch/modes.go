package dispatch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// RunSingle decodes one request from raw, dispatches it, and returns its
// response. Used by RunFile and RunBatch for each request line; single CLI
// subcommands call Dispatch directly.
func (d *Dispatcher) RunSingle(ctx ExecCtx, raw json.RawMessage) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Response{
			SchemaVersion: SchemaVersion,
			Op:            "unknown",
			OK:            false,
			Error:         &ErrorPayload{Code: CodeJSON, Message: err.Error()},
			Artifacts:     []Artifact{},
			Diagnostics:   []Diagnostic{},
		}
	}
	return d.Dispatch(ctx, req)
}

// RunFile reads a single request envelope from path and dispatches it.
func (d *Dispatcher) RunFile(ctx ExecCtx, path string) (Response, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("read request file %s: %w", path, err)
	}
	return d.RunSingle(ctx, raw), nil
}

// RunBatch reads NDJSON requests from r, writing one NDJSON response per
// line to w, until EOF, a "quit" op, or ctx.Context is cancelled. "ping" is
// answered directly without touching the op registry.
func (d *Dispatcher) RunBatch(ctx ExecCtx, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Context.Done():
			return ctx.Context.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			resp := Response{
				SchemaVersion: SchemaVersion,
				Op:            "unknown",
				OK:            false,
				Error:         &ErrorPayload{Code: CodeJSON, Message: err.Error()},
				Artifacts:     []Artifact{},
				Diagnostics:   []Diagnostic{},
			}
			if err := encoder.Encode(resp); err != nil {
				return err
			}
			continue
		}

		switch probe.Op {
		case "ping":
			if err := encoder.Encode(Response{SchemaVersion: SchemaVersion, Op: "ping", OK: true, Artifacts: []Artifact{}, Diagnostics: []Diagnostic{}}); err != nil {
				return err
			}
			continue
		case "quit":
			return nil
		}

		resp := d.RunSingle(ctx, json.RawMessage(line))
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
