package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/docshelf/core/buildinfo"
	coreconfig "github.com/m3rciful/docshelf/core/config"
	coretelegram "github.com/m3rciful/docshelf/core/telegram"
)

type stubConfig struct{ core *coreconfig.Config }

func (s stubConfig) CoreConfig() *coreconfig.Config { return s.core }

type stubApp struct{ opts coretelegram.RunOptions }

func (a stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func baseOptions(t *testing.T) Options {
	t.Helper()
	t.Setenv("DOCSHELF_TEST_CONFIG", "")
	return Options{
		ConfigEnvVar:      "DOCSHELF_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return stubConfig{core: &coreconfig.Config{}}, nil
		},
		ShutdownLogger: func() error { return nil },
		Signals: func() (context.Context, context.CancelFunc) {
			return context.WithCancel(context.Background())
		},
	}
}

func TestRunPrintsVersion(t *testing.T) {
	var out bytes.Buffer
	err := Run(Options{Args: []string{"version"}, Stdout: &out})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != buildinfo.String() {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunPassesSignalContextToBootstrap(t *testing.T) {
	opts := baseOptions(t)
	var bootCtx, runCtx context.Context
	opts.Bootstrap = func(ctx context.Context, _ ConfigCarrier) (TelegramApp, error) {
		bootCtx = ctx
		return stubApp{}, nil
	}
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		runCtx = ctx
		if ro.OnStart == nil || ro.OnStop == nil {
			t.Error("lifecycle hooks not wrapped")
		}
		return nil
	}
	if err := Run(opts); err != nil {
		t.Fatal(err)
	}
	if bootCtx == nil || bootCtx != runCtx {
		t.Fatal("bootstrap and runtime should share the signal context")
	}
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	opts := baseOptions(t)
	boom := errors.New("db down")
	flushed := false
	opts.ShutdownLogger = func() error { flushed = true; return nil }
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom }
	opts.RunTelegram = func(context.Context, coretelegram.RunOptions) error {
		t.Fatal("runtime must not start")
		return nil
	}
	if err := Run(opts); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !flushed {
		t.Fatal("logger not flushed after bootstrap failure")
	}
}

func TestRunRequiresConfigPath(t *testing.T) {
	opts := baseOptions(t)
	opts.DefaultConfigPath = ""
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) { return stubApp{}, nil }
	if err := Run(opts); err == nil || !strings.Contains(err.Error(), "DOCSHELF_TEST_CONFIG") {
		t.Fatalf("err = %v", err)
	}
}

func TestWrapLifecycleKeepsAppHooks(t *testing.T) {
	var calls []string
	ro := coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { calls = append(calls, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { calls = append(calls, "stop"); return nil },
	}
	wrapLifecycle(&ro, time.Now())
	_ = ro.OnStart(context.Background(), coretelegram.Runtime{})
	_ = ro.OnStop(context.Background(), coretelegram.Runtime{})
	if strings.Join(calls, ",") != "start,stop" {
		t.Fatalf("calls = %v", calls)
	}
}
