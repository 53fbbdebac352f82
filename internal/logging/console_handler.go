package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders records for interactive terminals. Info lines get a
// header plus curated bullet fields; debug lines dump every attribute.
type prettyHandler struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	seen      map[string]map[string]string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{writer: w, level: lvl, addSource: addSource, seen: make(map[string]map[string]string)}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := h.buildLine(record)

	var buf bytes.Buffer
	buf.Grow(256 + len(line.attrs)*32)

	h.mu.Lock()
	defer h.mu.Unlock()
	if line.level < slog.LevelInfo {
		h.renderDebug(&buf, line)
	} else {
		h.renderInfo(&buf, line)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// consoleLine is one record flattened for rendering. attrs has the routing
// keys already lifted out; rawAttrs keeps them for the debug view.
type consoleLine struct {
	ts        time.Time
	level     slog.Level
	component string
	lane      string
	jobID     string
	stage     string
	message   string
	source    *slog.Source
	attrs     []kv
	rawAttrs  []kv
}

// recordSource mirrors slog.Record.Source (added in Go 1.25) for older
// toolchains: it resolves the record's PC to a *slog.Source.
func recordSource(record slog.Record) *slog.Source {
	fs := runtime.CallersFrames([]uintptr{record.PC})
	f, _ := fs.Next()
	if f.Function == "" && f.File == "" {
		return nil
	}
	return &slog.Source{Function: f.Function, File: f.File, Line: f.Line}
}

func (h *prettyHandler) buildLine(record slog.Record) consoleLine {
	line := consoleLine{
		ts:      record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
		source:  recordSource(record),
	}
	if line.ts.IsZero() {
		line.ts = time.Now()
	}
	if line.message == "" {
		line.message = "(no message)"
	}

	flat := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		flattenAttr(&flat, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&flat, h.groups, attr)
		return true
	})
	line.rawAttrs = dedupeKeys(flat)

	// Routing keys take their first occurrence so inherited context wins the
	// header; the dedupe below still shows the call-site value in the fields.
	kept := make([]kv, 0, len(flat))
	for _, entry := range flat {
		switch entry.key {
		case FieldComponent:
			if line.component == "" {
				line.component = attrString(entry.value)
			}
			continue
		case FieldJobID:
			if line.jobID == "" {
				line.jobID = attrString(entry.value)
			}
		case FieldStage:
			if line.stage == "" {
				line.stage = attrString(entry.value)
			}
		case FieldLane:
			if line.lane == "" {
				line.lane = attrString(entry.value)
			}
		}
		kept = append(kept, entry)
	}
	line.attrs = dedupeKeys(kept)
	return line
}

func (h *prettyHandler) renderInfo(buf *bytes.Buffer, line consoleLine) {
	h.writeHeader(buf, line)
	fields, hidden := selectInfoFields(line.attrs, 0, true)
	fields = h.suppressRepeats(infoSummaryKey(line.component, line.jobID, line.stage, line.attrs), fields, line.level)
	for _, field := range fields {
		fmt.Fprintf(buf, "    - %s: %s\n", field.label, field.value)
	}
	if hidden > 0 {
		noun := "fields"
		if hidden == 1 {
			noun = "field"
		}
		fmt.Fprintf(buf, "    + %d more %s hidden\n", hidden, noun)
	}
}

func (h *prettyHandler) renderDebug(buf *bytes.Buffer, line consoleLine) {
	h.writeHeader(buf, line)
	for _, entry := range line.rawAttrs {
		if entry.key == "" {
			continue
		}
		fmt.Fprintf(buf, "    %s: %s\n", entry.key, formatValue(entry.value))
	}
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, line consoleLine) {
	buf.WriteString(formatTimestamp(line.ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(line.level))
	if line.component != "" {
		buf.WriteString(" [")
		buf.WriteString(line.component)
		buf.WriteByte(']')
	}
	if subject := FormatSubject(line.lane, line.jobID, line.stage); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	buf.WriteString(" – ")
	buf.WriteString(line.message)
	if h.addSource && line.source != nil {
		fmt.Fprintf(buf, " [%s:%d]", filepath.Base(line.source.File), line.source.Line)
	}
	buf.WriteByte('\n')
}

// suppressRepeats drops info bullets whose value matched the previous record
// for the same subject, so steady-state fields print once. Warnings and
// errors always render in full and refresh the cache.
func (h *prettyHandler) suppressRepeats(key string, fields []infoField, level slog.Level) []infoField {
	if key == "" || len(fields) == 0 {
		return fields
	}
	cache := h.seen[key]
	if cache == nil {
		cache = make(map[string]string)
		h.seen[key] = cache
	}
	if level > slog.LevelInfo {
		for _, field := range fields {
			cache[field.label] = field.value
		}
		return fields
	}
	kept := fields[:0]
	for _, field := range fields {
		if prev, ok := cache[field.label]; ok && prev == field.value {
			continue
		}
		cache[field.label] = field.value
		kept = append(kept, field)
	}
	return kept
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

// clone shares the writer, level, and repeat cache; attrs and groups are
// copied so derived handlers diverge safely.
func (h *prettyHandler) clone() *prettyHandler {
	clone := &prettyHandler{
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		seen:      h.seen,
	}
	clone.attrs = append(clone.attrs, h.attrs...)
	clone.groups = append(clone.groups, h.groups...)
	return clone
}

// dedupeKeys keeps the first position and the last value for each key, so a
// call-site attr overrides an inherited one without reordering the line.
func dedupeKeys(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	index := make(map[string]int, len(attrs))
	out := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := index[attr.key]; ok {
			out[pos].value = attr.value
			continue
		}
		index[attr.key] = len(out)
		out = append(out, attr)
	}
	return out
}

// flattenAttr resolves an attr and appends it to dst with group names joined
// into a dotted key. Empty group names inline their members.
func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(prefix[:len(prefix):len(prefix)], attr.Key)
		}
		for _, nested := range attr.Value.Group() {
			flattenAttr(dst, next, nested)
		}
		return
	}
	*dst = append(*dst, kv{key: joinKey(prefix, attr.Key), value: attr.Value})
}

func joinKey(prefix []string, key string) string {
	if len(prefix) == 0 {
		return key
	}
	if key == "" {
		return strings.Join(prefix, ".")
	}
	return strings.Join(prefix, ".") + "." + key
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
