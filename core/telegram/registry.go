package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	errCommandInvalid   = errors.New("command needs a /name and a description")
	errCommandDuplicate = errors.New("command already registered")
)

// Registry holds the bot command descriptors published to Telegram. Names and
// aliases are kept with their leading slash.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]commands.Command
	aliases map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]commands.Command),
		aliases: make(map[string]string),
	}
}

// RegisterCommand adds cmd. Invalid or duplicate commands are skipped and
// logged.
func (r *Registry) RegisterCommand(cmd commands.Command) {
	if err := r.add(cmd); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", cmd.Name),
			slog.String("err", err.Error()),
		)
	}
}

func (r *Registry) add(cmd commands.Command) error {
	if len(cmd.Name) < 2 || cmd.Name[0] != '/' || cmd.Description == "" {
		return errCommandInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[cmd.Name]; dup {
		return errCommandDuplicate
	}
	r.byName[cmd.Name] = cmd
	for _, a := range cmd.Aliases {
		r.aliases[slashed(a)] = cmd.Name
	}
	return nil
}

func slashed(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// ListCommands returns the menu sorted by name. Hidden commands never appear;
// admin-only ones appear only with includeAdmin.
func (r *Registry) ListCommands(includeAdmin bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.byName))
	for name, c := range r.byName {
		if c.Hidden || (c.AdminOnly && !includeAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: name[1:], Description: c.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return cmp.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves name or one of its aliases to the canonical name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = slashed(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canon, ok := r.aliases[name]; ok {
		name = canon
	}
	c, ok := r.byName[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, c, true
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// commandSetter is the part of *tele.Bot that publishes menus.
type commandSetter interface {
	SetCommands(opts ...any) error
}

// Publish sets the public command menu and, when adminID is non-zero, the
// full menu scoped to the administrator's chat.
func (r *Registry) Publish(bot commandSetter, adminID int64) error {
	if err := bot.SetCommands(r.ListCommands(false)); err != nil {
		return fmt.Errorf("set public commands: %w", err)
	}
	if adminID == 0 {
		return nil
	}
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: adminID}
	if err := bot.SetCommands(r.ListCommands(true), scope); err != nil {
		return fmt.Errorf("set admin commands: %w", err)
	}
	return nil
}
