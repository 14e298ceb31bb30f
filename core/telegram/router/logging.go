package router

import (
	"cmp"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	handlerKey = "handler_name"
	outcomeKey = "handler_outcome"
)

// SetOutcome lets the handler name the route it took and how it ended. Both
// show up in the summary line and the handler duration histogram.
func SetOutcome(c tele.Context, handler, outcome string) {
	if handler != "" {
		c.Set(handlerKey, handler)
	}
	if outcome != "" {
		c.Set(outcomeKey, outcome)
	}
}

// handleWithSummary runs fn and emits one handler.handled line for the update.
func handleWithSummary(c tele.Context, route string, fn func() error) error {
	start := time.Now()
	tghelpers.WithHandler(c, route)
	err := fn()

	handler := route
	if v, ok := c.Get(handlerKey).(string); ok && v != "" {
		handler = v
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	set, _ := c.Get(outcomeKey).(string)
	outcome := cmp.Or(set, status)

	elapsed := time.Since(start)
	metrics.HandlerDuration.WithLabelValues(handler, outcome).Observe(elapsed.Seconds())

	sent, kb := tghelpers.Counters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handler),
		slog.String("outcome", outcome),
		slog.Int("messages", sent),
		slog.Bool("kb", kb),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	ctx := tghelpers.WithHandler(c, handler)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

// errorCode prefers a Code() string carried by err (domain validation errors
// have one) and falls back to the error's type name.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
