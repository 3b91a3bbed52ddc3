package dispatch

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTracerRecordWritesJSONLLine(t *testing.T) {
	dir := t.TempDir()
	tracer, err := NewTracer(dir, "default")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	tracer.Record(TraceEvent{Op: "navigate", Profile: "default", OK: true, DurationMs: 12})
	if err := tracer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected a trace line")
	}
	var evt TraceEvent
	if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
		t.Fatalf("unmarshal trace line: %v", err)
	}
	if evt.Op != "navigate" || !evt.OK || evt.DurationMs != 12 {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestTracerRotateKeepsOnlyNewestFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		tracer, err := NewTracer(dir, "default")
		if err != nil {
			t.Fatalf("NewTracer iteration %d: %v", i, err)
		}
		tracer.Record(TraceEvent{Op: "navigate"})
		if err := tracer.Close(); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) > maxRotatedTraceFiles {
		t.Errorf("expected at most %d trace files, got %d", maxRotatedTraceFiles, len(entries))
	}
}

func TestNilTracerRecordIsNoop(t *testing.T) {
	var tracer *Tracer
	tracer.Record(TraceEvent{Op: "navigate"})
	if err := tracer.Close(); err != nil {
		t.Fatalf("Close on nil tracer: %v", err)
	}
}

func TestDispatchWithTraceRecordsEvent(t *testing.T) {
	dir := t.TempDir()
	tracer, err := NewTracer(dir, "default")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	d := NewDispatcherWithTrace(Registry{"echo": echoCommand{}}, tracer)

	ctx := testExecCtx(t)

	raw, _ := json.Marshal(map[string]string{"text": "hello"})
	req := Request{SchemaVersion: SchemaVersion, Op: "echo", Input: raw}
	resp := d.Dispatch(ctx, req)
	if !resp.OK {
		t.Fatalf("expected ok response, got %+v", resp)
	}
	if err := tracer.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(entries))
	}
}
