package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/docshelf/core/buildinfo"
	coreconfig "github.com/m3rciful/docshelf/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	sink     *lineSink
	levelVar slog.LevelVar
	sampler  debugSampler
	// traceAll bypasses debug sampling; set by TRACE=1 or LOG_TRACE=1.
	traceAll bool

	// L is the process logger. Prefer the context-first helpers below.
	L *slog.Logger

	// DB logs connection and pool events.
	DB *slog.Logger
	// MIG logs schema migrations.
	MIG *slog.Logger
	// TG logs the Telegram runtime.
	TG *slog.Logger
	// TWire logs route and middleware registration.
	TWire *slog.Logger
)

// settings is the logging configuration after defaults are applied.
type settings struct {
	format  logFormat
	order   []string
	level   slog.Level
	every   int
	profile string
}

func resolveSettings(cfg *coreconfig.Config) settings {
	s := settings{
		format:  formatJSON,
		order:   slices.Clone(defaultKeyOrder),
		level:   slog.LevelInfo,
		every:   defaultSampleEvery,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}
	s.every = parseSampleEvery(lc.DebugSample)
	return s
}

// InitLogger installs the structured handler as the slog default. Only the
// first call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolveSettings(cfg)

		outputs, closers, oerr := openOutputs(cfg)
		if oerr != nil {
			err = oerr
			return
		}
		sink = newLineSink(outputs, closers)
		levelVar.Set(s.level)
		sampler.setEvery(s.every)
		traceAll = envFlag("TRACE") || envFlag("LOG_TRACE")

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			sink:     sink,
			format:   s.format,
			keyOrder: s.order,
		}))
		slog.SetDefault(L)
		scopeComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

func init() {
	// Discard until InitLogger runs so libraries and tests never see nil loggers.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
	scopeComponents()
}

func scopeComponents() {
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
}

// Shutdown closes the log file, if any. Later log lines are dropped.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed || sink == nil {
		closed = true
		return nil
	}
	closed = true
	return sink.Close()
}

// openOutputs always includes stdout and, when logging.dir and
// logging.bot_file are both set, an append-only log file.
func openOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil, nil
	}
	dir, name := strings.TrimSpace(cfg.Logging.Dir), strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || name == "" {
		return writers, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return append(writers, f), []io.Closer{f}, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// LogEvent writes one event line. A nil logg means the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name; a blank name returns L itself.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// emitted now.
func ShouldSampleDebug() bool {
	return traceAll || sampler.allow()
}
