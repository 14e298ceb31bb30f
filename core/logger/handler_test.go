package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newTestLogger(t *testing.T, format logFormat) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		sink:   newLineSink([]io.Writer{buf}, nil),
		format: format,
	})
	return slog.New(h), buf
}

func TestKVLineStartsWithOrderedKeys(t *testing.T) {
	log, buf := newTestLogger(t, formatKV)
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)

	LogEvent(ctx, log.With("component", "service.payments"), slog.LevelInfo, "payment.settled",
		slog.String("status", "ok"),
		slog.Int("months", 3),
	)

	tokens := strings.Fields(buf.String())
	want := []string{"ts=", "level=INFO", "component=service.payments", "event=payment.settled", "status=ok", "rid=rid-123"}
	if len(tokens) < len(want) {
		t.Fatalf("short line: %q", buf.String())
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %q, want prefix %q", i, tokens[i], prefix)
		}
	}
	for _, kv := range []string{"update_id=42", "user_id=7", "chat_id=9", "months=3"} {
		if !strings.Contains(buf.String(), kv) {
			t.Fatalf("missing %s in %q", kv, buf.String())
		}
	}
}

func TestJSONCompactsRIDAndKeepsFull(t *testing.T) {
	log, buf := newTestLogger(t, formatJSON)
	ctx := WithRID(context.Background(), "12:34:56")

	log.InfoContext(ctx, "rid.test")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got["rid"] != CompactRID("12:34:56") || got["rid_full"] != "12:34:56" {
		t.Fatalf("rid fields = %v / %v", got["rid"], got["rid_full"])
	}
	if got["event"] != "rid.test" || got["component"] != "app" {
		t.Fatalf("defaults not applied: %v", got)
	}
	if _, ok := got["ts_unix_nano"]; !ok {
		t.Fatal("ts_unix_nano missing")
	}
}

func TestKVOmitsFullRID(t *testing.T) {
	log, buf := newTestLogger(t, formatKV)
	log.InfoContext(WithRID(context.Background(), "123:456:789"), "rid.test")

	line := buf.String()
	if !strings.Contains(line, "rid="+CompactRID("123:456:789")) {
		t.Fatalf("compact rid missing: %q", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full leaked into kv output: %q", line)
	}
}

func TestDurationsBecomeMilliseconds(t *testing.T) {
	log, buf := newTestLogger(t, formatJSON)
	log.Info("settle",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("backoff", 200*time.Millisecond),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["duration_ms"] != float64(2) || got["backoff_ms"] != float64(200) {
		t.Fatalf("durations = %v / %v", got["duration_ms"], got["backoff_ms"])
	}
}

func TestUnknownOutcomeDroppedAndEmptyPruned(t *testing.T) {
	log, buf := newTestLogger(t, formatKV)
	log.Info("x", slog.String("outcome", "whatever"), slog.String("cause", "  "), slog.String("status", "DENIED"))

	line := buf.String()
	if strings.Contains(line, "outcome=") || strings.Contains(line, "cause=") {
		t.Fatalf("expected outcome and cause pruned: %q", line)
	}
	if !strings.Contains(line, "status=denied") {
		t.Fatalf("status not normalized: %q", line)
	}
}

func TestGroupsFlattenToDottedKeys(t *testing.T) {
	log, buf := newTestLogger(t, formatKV)
	log.WithGroup("plan").Info("x", slog.Int("months", 6), slog.Group("price", slog.Int("stars", 900)))

	line := buf.String()
	if !strings.Contains(line, "plan.months=6") || !strings.Contains(line, "plan.price.stars=900") {
		t.Fatalf("groups not flattened: %q", line)
	}
}

func TestSpanContextAddsTraceIDs(t *testing.T) {
	log, buf := newTestLogger(t, formatJSON)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "traced")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["trace_id"] != sc.TraceID().String() || got["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace ids = %v / %v", got["trace_id"], got["span_id"])
	}
}

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	h := newStructuredHandler(handlerConfig{level: slog.LevelWarn, sink: newLineSink([]io.Writer{buf}, nil)})
	log := slog.New(h)
	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSinkRejectsWritesAfterClose(t *testing.T) {
	s := newLineSink([]io.Writer{&bytes.Buffer{}}, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.WriteLine([]byte("x\n")); err != errSinkClosed {
		t.Fatalf("write after close = %v", err)
	}
}

func TestDomainOutcomesSurvive(t *testing.T) {
	for _, o := range []string{"settled", "stale", "prompted", "not_found", "Canceled"} {
		log, buf := newTestLogger(t, formatKV)
		log.Info("handler.handled", slog.String("outcome", o))
		want, _ := normalizeOutcome(o)
		if !strings.Contains(buf.String(), "outcome="+want) {
			t.Errorf("outcome %q lost: %q", o, buf.String())
		}
	}
}
