package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{ name string }

var (
	keyLogger = ctxKey{"logger"}
	keyMeta   = ctxKey{"meta"}
)

// requestMeta carries the correlation fields of one Telegram update.
type requestMeta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func metaFrom(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(keyMeta).(requestMeta)
	return m
}

func withMeta(ctx context.Context, update func(*requestMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, keyMeta, m)
}

// WithLogger stores log in ctx so deeper layers keep the update's attributes.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *requestMeta) { m.rid = rid })
}

// RIDFrom returns the correlation id attached by WithRID.
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta attaches the update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *requestMeta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler records which handler serves the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *requestMeta) { m.handler = handler })
}

// HandlerFrom returns the handler name attached by WithHandler.
func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

// UserIDFrom returns the Telegram user id of the update in ctx.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom returns the chat id of the update in ctx.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// UpdateIDFrom returns the Telegram update id in ctx.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// TraceIDFrom returns the trace id of the active OpenTelemetry span.
func TraceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// SpanIDFrom returns the span id of the active OpenTelemetry span.
func SpanIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}

// contextFields lists the correlation fields of ctx in log key order.
func contextFields(ctx context.Context) []field {
	if ctx == nil {
		return nil
	}
	m := metaFrom(ctx)
	out := make([]field, 0, 7)
	add := func(key string, val any, present bool) {
		if present {
			out = append(out, field{key, val})
		}
	}
	add("rid", m.rid, m.rid != "")
	traceID, spanID := TraceIDFrom(ctx), SpanIDFrom(ctx)
	add("trace_id", traceID, traceID != "")
	add("span_id", spanID, spanID != "")
	add("update_id", m.updateID, m.updateID != 0)
	add("user_id", m.userID, m.userID != 0)
	add("chat_id", m.chatID, m.chatID != 0)
	add("handler", m.handler, m.handler != "")
	return out
}
