package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected noop handler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if got := newFanoutHandler(nil, inner, nil); got != inner {
		t.Fatal("expected a single surviving handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabled(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(info, debug)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected enabled when any handler accepts the level")
	}

	strict := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	if strict.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected disabled when no handler accepts the level")
	}
}

func TestFanoutHandlerDeliversToAll(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	slog.New(h).Info("stage claimed", slog.String("job_id", "reel-1"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"job_id"`)) {
			t.Fatalf("handler %d missed the record attrs", i+1)
		}
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var fileBuf, consoleBuf bytes.Buffer
	debugFile := slog.NewJSONHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	console := slog.NewJSONHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(newFanoutHandler(console, debugFile))
	logger.Debug("claim query ran")

	if consoleBuf.Len() != 0 {
		t.Fatal("expected the info handler to drop debug records")
	}
	if fileBuf.Len() == 0 {
		t.Fatal("expected the debug handler to receive debug records")
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "daemon")}).WithGroup("run"))
	logger.Info("started", slog.String("pid_file", "/tmp/reelforge.pid"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"component"`)) {
			t.Fatalf("handler %d missed WithAttrs", i+1)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"run"`)) {
			t.Fatalf("handler %d missed WithGroup", i+1)
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("reel submitted")

	if baseBuf.Len() == 0 {
		t.Fatal("expected output through the base logger")
	}
	if teeBuf.Len() == 0 {
		t.Fatal("expected output through the teed handler")
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("no base logger")

	if teeBuf.Len() == 0 {
		t.Fatal("expected output through the teed handler")
	}
}
