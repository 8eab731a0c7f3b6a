// Package history persists one JSONL record per loop iteration. The ledger
// is advisory: write failures are reported to the caller as warnings and
// never influence the loop. Readers tolerate malformed lines so a truncated
// write cannot wedge "ralph status".
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one iteration record in the ledger.
type Entry struct {
	RunID            string `json:"run_id"`
	Mode             string `json:"mode"`
	Iteration        int    `json:"iteration"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at"`
	DurationMS       int64  `json:"duration_ms"`
	Outcome          string `json:"outcome"`
	PublishAttempted bool   `json:"publish_attempted"`
	PublishError     string `json:"publish_error,omitempty"`
}

// Ledger appends to and reads a JSONL history file.
type Ledger struct {
	Path string
}

// NewRunID returns a timestamped identifier shared by all entries of one
// driver invocation.
func NewRunID(now time.Time) string {
	return "run-" + now.UTC().Format("20060102-150405")
}

// Append writes one entry as a single JSON line, creating the parent
// directory if needed.
func (l *Ledger) Append(e Entry) error {
	if l.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// Read returns all parseable entries in file order. Malformed lines are
// skipped; a missing file returns nil, nil.
func (l *Ledger) Read() ([]Entry, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Summary aggregates the ledger for "ralph status".
type Summary struct {
	TotalIterations int            `json:"total_iterations"`
	Runs            int            `json:"runs"`
	Outcomes        map[string]int `json:"outcomes"`
	PublishFailures int            `json:"publish_failures"`
	Last            *Entry         `json:"last,omitempty"`
}

// Summarize computes aggregate counts over all entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Outcomes: make(map[string]int)}
	runs := make(map[string]struct{})
	for i := range entries {
		e := entries[i]
		s.TotalIterations++
		s.Outcomes[e.Outcome]++
		if e.PublishError != "" {
			s.PublishFailures++
		}
		if e.RunID != "" {
			runs[e.RunID] = struct{}{}
		}
		s.Last = &entries[i]
	}
	s.Runs = len(runs)
	return s
}
