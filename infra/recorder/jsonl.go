// Package recorder keeps a JSONL trail of every published signal map.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

// Record is one line of the recording.
type Record struct {
	RunID     string                       `json:"run_id"`
	Timestamp time.Time                    `json:"timestamp"`
	Cycle     int                          `json:"cycle"`
	Scenario  model.ScenarioMode           `json:"scenario"`
	Signals   map[string]model.SignalValue `json:"signals"`
	Error     string                       `json:"error,omitempty"`
}

// Query filters records read back from disk. Zero values match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Scenario *model.ScenarioMode
}

// JSONLRecorder appends cycles to a JSONL file with automatic rotation.
type JSONLRecorder struct {
	logger *lumberjack.Logger
	path   string
	runID  string
}

var _ coremetrics.MetricsSink = (*JSONLRecorder)(nil)

// NewJSONLRecorder creates a recorder with rotation options in megabytes and days.
func NewJSONLRecorder(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("recorder path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &JSONLRecorder{logger: lj, path: path, runID: uuid.NewString()}, nil
}

// RunID identifies the process that wrote a record.
func (r *JSONLRecorder) RunID() string { return r.runID }

// RecordCycle writes the cycle and triggers rotation if needed.
func (r *JSONLRecorder) RecordCycle(ev coremetrics.CycleEvent) error {
	rec := Record{
		RunID:     r.runID,
		Timestamp: ev.Time,
		Cycle:     ev.Cycle,
		Scenario:  ev.Scenario,
		Signals:   map[string]model.SignalValue{},
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if ev.Signals != nil {
		ev.Signals.Range(func(path string, v model.SignalValue) bool {
			rec.Signals[path] = v
			return true
		})
	}
	return json.NewEncoder(r.logger).Encode(rec)
}

// Query reads all recording files including rotated ones, oldest first.
// Lines that are not records are skipped; a file that cannot be read fails
// the whole query.
func (r *JSONLRecorder) Query(ctx context.Context, q Query) ([]Record, error) {
	files, err := filepath.Glob(r.path + "*")
	if err != nil {
		return nil, err
	}
	rotated, err := filepath.Glob(rotatedPattern(r.path))
	if err != nil {
		return nil, err
	}
	files = append(files, rotated...)
	var res []Record
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readFile(f, q)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		res = append(res, recs...)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

// rotatedPattern matches lumberjack backups, which keep the extension
// after the timestamp: signals-2024-01-01T00-00-00.000.jsonl.
func rotatedPattern(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "-*" + ext
}

func readFile(name string, q Query) ([]Record, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	var res []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && rec.Timestamp.After(q.End) {
			continue
		}
		if q.Scenario != nil && rec.Scenario != *q.Scenario {
			continue
		}
		res = append(res, rec)
	}
	return res, scanner.Err()
}

// Close closes the underlying writer.
func (r *JSONLRecorder) Close() error {
	return r.logger.Close()
}
