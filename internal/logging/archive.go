package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// maxArchiveLine bounds a single journaled event. Events are one JSON object
// per line, so anything longer than this is a corrupt journal.
const maxArchiveLine = 1 << 20

// EventArchive journals stream events to disk so the log API can replay
// history after the in-memory ring has rolled over.
type EventArchive struct {
	path string
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEventArchive starts a fresh journal at path. Each daemon run owns its
// archive, so any previous contents are truncated. An empty path returns a
// nil archive, which disables journaling.
func NewEventArchive(path string) (*EventArchive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := ensureLogDir(trimmed); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("initialize archive %s: %w", trimmed, err)
	}
	return &EventArchive{path: trimmed, file: file, enc: json.NewEncoder(file)}, nil
}

// Append journals one event. Write failures are swallowed; the hub keeps
// serving live events even when the archive is unavailable.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enc == nil && !a.reopen() {
		return
	}
	_ = a.enc.Encode(evt)
}

// ReadSince returns archived events with sequence numbers above since, along
// with the highest sequence seen. limit bounds the result (0 is unlimited).
func (a *EventArchive) ReadSince(since uint64, limit int) ([]LogEvent, uint64, error) {
	if a == nil || strings.TrimSpace(a.path) == "" {
		return nil, since, nil
	}
	file, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, fmt.Errorf("open archive %s: %w", a.path, err)
	}
	defer file.Close()

	events := make([]LogEvent, 0, readCapHint(limit))
	highest := since
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArchiveLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var evt LogEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			return events, highest, fmt.Errorf("decode archive %s: %w", a.path, err)
		}
		if evt.Sequence > highest {
			highest = evt.Sequence
		}
		if evt.Sequence <= since {
			continue
		}
		events = append(events, evt)
		if limit > 0 && len(events) >= limit {
			return events, highest, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return events, highest, fmt.Errorf("read archive %s: %w", a.path, err)
	}
	return events, highest, nil
}

func readCapHint(limit int) int {
	if limit > 0 && limit <= 512 {
		return limit
	}
	return 512
}

// Close releases the archive file handle.
func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.file != nil {
		err = a.file.Close()
	}
	a.file = nil
	a.enc = nil
	return err
}

// Path returns the on-disk location backing the archive.
func (a *EventArchive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

func (a *EventArchive) reopen() bool {
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false
	}
	a.file = file
	a.enc = json.NewEncoder(file)
	return true
}
