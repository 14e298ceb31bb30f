package commands

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/start":            "/start",
		"/Start@docs_bot":   "/start",
		"  /add  now":       "/add",
		"/":                 "",
		"hello":             "",
		"":                  "",
		"/cancel@bot extra": "/cancel",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArgs(t *testing.T) {
	if got := Args("/start  deep-link "); got != "deep-link" {
		t.Fatalf("unexpected args %q", got)
	}
	if got := Args("/help"); got != "" {
		t.Fatalf("expected no args, got %q", got)
	}
}
