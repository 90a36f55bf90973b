package analysis

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var journalRunIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// JournalEvent is one stage transition persisted as a JSON line.
type JournalEvent struct {
	Timestamp string         `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Stage     Stage          `json:"stage"`
	Status    string         `json:"status"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Journal appends run-scoped stage events to <dir>/<run_id>.jsonl.
// A nil *Journal drops every event.
type Journal struct {
	dir string
	mu  sync.Mutex
}

func NewJournal(dir string) *Journal {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	return &Journal{dir: dir}
}

func journalFileName(runID string) string {
	id := journalRunIDSanitizer.ReplaceAllString(strings.TrimSpace(runID), "_")
	if id == "" {
		id = "unknown"
	}
	return id + ".jsonl"
}

func newJournalEvent(runID string, stage Stage, status string, fields map[string]any) JournalEvent {
	ev := JournalEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     runID,
		Stage:     stage,
		Status:    status,
	}
	if len(fields) > 0 {
		ev.Fields = fields
	}
	return ev
}

// Append records a new event for runID.
func (j *Journal) Append(runID string, stage Stage, status string, fields map[string]any) {
	j.Write(newJournalEvent(runID, stage, status, fields))
}

// Write is best effort: journal failures never fail a run.
func (j *Journal) Write(ev JournalEvent) {
	if j == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	raw = append(raw, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(j.dir, journalFileName(ev.RunID)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(raw)
}

// Read returns the events recorded for a run, skipping undecodable lines.
func (j *Journal) Read(runID string) ([]JournalEvent, error) {
	if j == nil {
		return []JournalEvent{}, nil
	}
	f, err := os.Open(filepath.Join(j.dir, journalFileName(runID)))
	if err != nil {
		if os.IsNotExist(err) {
			return []JournalEvent{}, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	out := make([]JournalEvent, 0, len(Stages))
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev JournalEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return out, nil
}
