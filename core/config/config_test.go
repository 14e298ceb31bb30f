package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "Polling"}}
	if err := Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Telegram.SendRPS != defaultSendRPS {
		t.Fatalf("send rps = %v", cfg.Telegram.SendRPS)
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := map[string]Config{
		"telegram token":  {},
		"webhook.url":     {Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook}},
		"invalid":         {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"send_rps":        {Telegram: TelegramConfig{Token: "t", SendRPS: -1}},
		"exclude_updates": {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"payment"}}},
		"tracing.endpoint": {
			Telegram: TelegramConfig{Token: "t"},
			Tracing:  TracingConfig{Enabled: true},
		},
	}
	for want, cfg := range cases {
		err := Normalize(&cfg)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%s: err = %v", want, err)
		}
	}
}

func TestNormalizeFillsRateAndMetricsDefaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{RPS: 1, ExcludeUpdates: []string{" Callback "}},
		Metrics:   MetricsConfig{Listen: ":9090"},
		Tracing:   TracingConfig{Enabled: true, Endpoint: "otel:4317", SampleRatio: 0.5},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.Burst != 1 || cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Metrics.Path != "/metrics" || cfg.Tracing.ServiceName != "docshelf" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Metrics, cfg.Tracing)
	}
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "telegram:\n  token: from-file\n  send_rps: 5\nwebhook:\n  secret_token: file-secret\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.SendRPS != 5 || cfg.Webhook.SecretToken != "file-secret" {
		t.Fatalf("yaml values lost: %+v %+v", cfg.Telegram, cfg.Webhook)
	}
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{RunMode: RunModeWebhook, SendRPS: -1},
		Metrics:  MetricsConfig{Listen: ":9090", Path: "metrics"},
	}
	err := Normalize(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"telegram token", "webhook.url", "webhook.listen", "webhook.port", "send_rps", "metrics.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
