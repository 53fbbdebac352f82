package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one structured log line as seen by the streaming hub. Routing
// keys (job, stage, lane, correlation, component) are lifted into typed
// columns so API consumers can filter without parsing the Fields map.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	JobID         string            `json:"job_id,omitempty"`
	Lane          string            `json:"lane,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// apply routes one attribute into the event. Known routing keys fill the
// typed columns; everything else lands in the Fields map.
func (e *LogEvent) apply(attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return
	}
	switch key {
	case FieldJobID:
		e.JobID = attrString(attr.Value)
	case FieldStage:
		e.Stage = attrString(attr.Value)
	case FieldLane:
		e.Lane = attrString(attr.Value)
	case FieldCorrelationID:
		e.CorrelationID = attrString(attr.Value)
	case FieldComponent:
		e.Component = attrString(attr.Value)
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = attrString(attr.Value)
	}
}

// LogEventSink receives every published event, used to persist the stream
// beyond the in-memory window.
type LogEventSink interface {
	Append(LogEvent)
}

// StreamHub keeps the most recent log events in a fixed circular buffer and
// wakes long-poll waiters when new events arrive. Sequence numbers are
// assigned on publish and are contiguous, so the buffered window is always
// a dense range ending at the newest sequence.
type StreamHub struct {
	mu    sync.Mutex
	cond  *sync.Cond
	ring  []LogEvent
	head  int // index of the oldest buffered event
	count int
	seq   uint64 // last assigned sequence
	sinks []LogEventSink
}

// NewStreamHub constructs a hub retaining up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &StreamHub{ring: make([]LogEvent, capacity)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *StreamHub) AddSink(sink LogEventSink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish stamps the event with the next sequence number, stores it in the
// ring, and wakes waiters. Sinks run outside the lock so a slow sink cannot
// stall logging.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.seq++
	evt.Sequence = h.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.count == len(h.ring) {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	} else {
		h.ring[(h.head+h.count)%len(h.ring)] = evt
		h.count++
	}
	sinks := append([]LogEventSink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns events with sequence greater than since, oldest first. When
// wait is true and nothing is buffered past since, Fetch blocks until an
// event arrives or ctx ends. The returned cursor is the newest sequence
// assigned so far, whether or not it fell inside the window.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	limit = h.clampLimit(limit)
	if wait {
		defer h.wakeOnDone(ctx)()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.windowLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, ctxErr(ctx)
		}
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	limit = h.clampLimit(limit)
	h.mu.Lock()
	defer h.mu.Unlock()
	skip := 0
	if h.count > limit {
		skip = h.count - limit
	}
	return h.copyLocked(skip, h.count-skip), h.seq
}

// FirstSequence reports the oldest sequence still buffered, or the newest
// assigned sequence when the buffer is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return h.seq
	}
	return h.ring[h.head].Sequence
}

// windowLocked slices the dense sequence range after since. Contiguity lets
// the boundaries follow from arithmetic rather than a scan.
func (h *StreamHub) windowLocked(since uint64, limit int) ([]LogEvent, uint64) {
	if h.count == 0 {
		return nil, h.seq
	}
	skip := 0
	if oldest := h.ring[h.head].Sequence; since >= oldest {
		past := since - oldest + 1
		if past >= uint64(h.count) {
			return nil, h.seq
		}
		skip = int(past)
	}
	n := h.count - skip
	if n > limit {
		n = limit
	}
	return h.copyLocked(skip, n), h.seq
}

func (h *StreamHub) copyLocked(skip, n int) []LogEvent {
	if n <= 0 {
		return nil
	}
	out := make([]LogEvent, n)
	for i := range out {
		out[i] = h.ring[(h.head+skip+i)%len(h.ring)]
	}
	return out
}

// clampLimit is safe without the lock; the ring is never reallocated.
func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > len(h.ring) {
		return len(h.ring)
	}
	return limit
}

// wakeOnDone broadcasts when ctx ends so a blocked Fetch observes the
// cancellation. Taking the lock before broadcasting closes the gap where a
// waiter has checked ctx but not yet parked on the condition.
func (h *StreamHub) wakeOnDone(ctx context.Context) (stop func()) {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.cond.Broadcast()
			h.mu.Unlock()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// streamHandler publishes every record to the hub before delegating to the
// wrapped handler. Attrs bound via With travel with the handler so events
// from derived loggers keep their job and stage routing.
type streamHandler struct {
	next      slog.Handler
	hub       *StreamHub
	inherited []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(hubEvent(record, h.inherited))
	return h.next.Handle(ctx, record)
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.inherited)+len(attrs))
	merged = append(merged, h.inherited...)
	merged = append(merged, attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, inherited: merged}
}

// WithGroup keeps the inherited attrs; the hub view is flat and attrs bound
// before the group stay top-level in slog as well.
func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, inherited: h.inherited}
}

// hubEvent flattens a record into a LogEvent. Inherited attrs apply first so
// call-site attrs override them, and only call-site attrs feed the detail
// bullets, matching what the console prints for the same record.
func hubEvent(record slog.Record, inherited []slog.Attr) LogEvent {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, attr := range inherited {
		evt.apply(attr)
	}

	var inline []kv
	record.Attrs(func(attr slog.Attr) bool {
		evt.apply(attr)
		if key := strings.TrimSpace(attr.Key); key != "" {
			inline = append(inline, kv{key: key, value: attr.Value})
		}
		return true
	})

	if info, _ := selectInfoFields(inline, infoAttrLimit, false); len(info) > 0 {
		evt.Details = make([]DetailField, 0, len(info))
		for _, field := range info {
			evt.Details = append(evt.Details, DetailField{Label: field.label, Value: field.value})
		}
	}
	return evt
}
