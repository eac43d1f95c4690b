package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry is one log line kept in memory for the control panel.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

// history is an io.Writer that decodes zerolog JSON lines into a bounded
// list of entries. zerolog hands every event to Write as one complete line.
type history struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int
	onLog   func(LogEntry)
}

func newHistory(max int) *history {
	return &history{
		entries: make([]LogEntry, 0, max),
		max:     max,
	}
}

func (h *history) Write(p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		// Not ours; keep the writer chain going.
		return len(p), nil
	}

	entry := LogEntry{
		Timestamp: time.Now().Format("15:04:05.000"),
		Level:     takeString(fields, zerolog.LevelFieldName),
		Component: takeString(fields, "component"),
		Message:   takeString(fields, zerolog.MessageFieldName),
	}
	delete(fields, zerolog.TimestampFieldName)
	delete(fields, "app")
	errText := takeString(fields, zerolog.ErrorFieldName)

	entry.Data = formatData(fields)
	if errText != "" {
		if entry.Data != "" {
			entry.Data += " "
		}
		entry.Data += "error=" + errText
	}

	h.add(entry)
	return len(p), nil
}

func (h *history) add(entry LogEntry) {
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	onLog := h.onLog
	h.mu.Unlock()

	if onLog != nil {
		go onLog(entry)
	}
}

func (h *history) last(limit int) []LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	out := make([]LogEntry, limit)
	copy(out, h.entries[len(h.entries)-limit:])
	return out
}

func takeString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, ", ")
}
