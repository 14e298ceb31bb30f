package telegram

import (
	"errors"
	"testing"

	"github.com/m3rciful/docshelf/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func TestRegistryListCommandsFiltersAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand(commands.Command{Name: "/start", Description: "Start"})
	reg.RegisterCommand(commands.Command{Name: "/add", Description: "Add", AdminOnly: true})
	reg.RegisterCommand(commands.Command{Name: "/debug", Description: "Debug", Hidden: true})
	reg.RegisterCommand(commands.Command{Name: "nope", Description: "No slash"})
	reg.RegisterCommand(commands.Command{Name: "/start", Description: "Duplicate"})

	if reg.Len() != 3 {
		t.Fatalf("expected 3 commands, got %d", reg.Len())
	}
	public := reg.ListCommands(false)
	if len(public) != 1 || public[0].Text != "start" || public[0].Description != "Start" {
		t.Fatalf("unexpected public menu: %+v", public)
	}
	admin := reg.ListCommands(true)
	if len(admin) != 2 || admin[0].Text != "add" {
		t.Fatalf("unexpected admin menu: %+v", admin)
	}
}

func TestRegistryLookupAlias(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand(commands.Command{Name: "/documents", Description: "List", Aliases: []string{"docs"}})

	key, _, ok := reg.LookupCommand("/docs")
	if !ok || key != "/documents" {
		t.Fatalf("alias lookup failed: %q %v", key, ok)
	}
	if _, _, ok := reg.LookupCommand("missing"); ok {
		t.Fatalf("unexpected match")
	}
}

type fakeSetter struct {
	calls [][]any
	err   error
}

func (f *fakeSetter) SetCommands(opts ...any) error {
	f.calls = append(f.calls, opts)
	return f.err
}

func TestRegistryPublishScopesAdminMenu(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand(commands.Command{Name: "/start", Description: "Start"})
	reg.RegisterCommand(commands.Command{Name: "/stats", Description: "Stats", AdminOnly: true})

	var fs fakeSetter
	if err := reg.Publish(&fs, 0); err != nil || len(fs.calls) != 1 {
		t.Fatalf("public only: err=%v calls=%d", err, len(fs.calls))
	}

	fs = fakeSetter{}
	if err := reg.Publish(&fs, 42); err != nil {
		t.Fatal(err)
	}
	if len(fs.calls) != 2 {
		t.Fatalf("expected public and admin menus, got %d calls", len(fs.calls))
	}
	scope, ok := fs.calls[1][1].(tele.CommandScope)
	if !ok || scope.ChatID != 42 || scope.Type != tele.CommandScopeChat {
		t.Fatalf("unexpected admin scope: %#v", fs.calls[1])
	}
	if menu := fs.calls[1][0].([]tele.Command); len(menu) != 2 {
		t.Fatalf("admin menu = %+v", menu)
	}

	fs = fakeSetter{err: errors.New("boom")}
	if err := reg.Publish(&fs, 42); err == nil || len(fs.calls) != 1 {
		t.Fatalf("failure should stop after the public menu: err=%v calls=%d", err, len(fs.calls))
	}
}
