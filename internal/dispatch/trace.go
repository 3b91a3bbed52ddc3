package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const maxRotatedTraceFiles = 3

// TraceEvent is one line of a dispatcher's debug trace: enough to reconstruct
// what op ran, for which profile, and whether it succeeded, without
// recording the navigation history or page content a request touched.
type TraceEvent struct {
	Timestamp  time.Time `json:"ts"`
	Op         string    `json:"op"`
	RequestID  string    `json:"requestId,omitempty"`
	Profile    string    `json:"profile"`
	OK         bool      `json:"ok"`
	DurationMs int64     `json:"durationMs"`
	ErrorCode  string    `json:"errorCode,omitempty"`
}

// Tracer appends TraceEvents to a rotating JSONL file, for diagnosing a
// misbehaving batch run after the fact. It is optional: a nil *Tracer is
// safe to call Record on.
type Tracer struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
}

// NewTracer opens (creating if needed) a rotating trace file under
// basePath, named for the starting profile and process start time.
func NewTracer(basePath, profile string) (*Tracer, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	t := &Tracer{basePath: basePath}
	if err := t.rotate(); err != nil {
		return nil, fmt.Errorf("rotate trace files: %w", err)
	}
	name := fmt.Sprintf("trace_%s_%d.jsonl", profile, time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(basePath, name))
	if err != nil {
		return nil, err
	}
	t.file = f
	t.encoder = json.NewEncoder(f)
	return t, nil
}

// Record writes one event. Errors are swallowed: a trace write must never
// fail the request it is describing.
func (t *Tracer) Record(evt TraceEvent) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.encoder == nil {
		return
	}
	_ = t.encoder.Encode(evt)
}

// Close finishes the current trace file.
func (t *Tracer) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.file.Close()
	t.file = nil
	t.encoder = nil
	return err
}

// rotate keeps only the newest maxRotatedTraceFiles-1 trace files, making
// room for the one about to be created.
func (t *Tracer) rotate() error {
	entries, err := os.ReadDir(t.basePath)
	if err != nil {
		return err
	}

	type traceFile struct {
		name string
		mod  time.Time
	}
	var traces []traceFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, traceFile{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool { return traces[i].mod.After(traces[j].mod) })

	keep := maxRotatedTraceFiles - 1
	if keep < 0 {
		keep = 0
	}
	for i := keep; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(t.basePath, traces[i].name))
	}
	return nil
}
