package dispatch

import (
	"strings"

	"github.com/m3rciful/docshelf/core/telegram/commands"
)

// Command names.
const (
	CmdStart     = "/start"
	CmdHelp      = "/help"
	CmdDocuments = "/documents"
	CmdSubscribe = "/subscribe"
	CmdStatus    = "/status"
	CmdAdd       = "/add"
	CmdCancel    = "/cancel"
	CmdStats     = "/stats"
)

// Menu labels shown on the reply keyboard.
const (
	LabelDocuments = "📚 Document List"
	LabelSubscribe = "💳 Subscribe"
	LabelStatus    = "👤 My Subscription"
	LabelAdd       = "➕ Add Document"
)

// Callback keys.
const (
	CallbackDocument  = "doc"
	CallbackSubscribe = "subscribe"
)

// Commands lists every command the bot understands, in help order.
var Commands = []commands.Command{
	{Name: CmdStart, Description: "Open the main menu"},
	{Name: CmdDocuments, Description: "Browse the document catalog", Aliases: []string{"/catalog"}},
	{Name: CmdSubscribe, Description: "Buy or extend a subscription", Aliases: []string{"/buy"}},
	{Name: CmdStatus, Description: "Show your subscription", Aliases: []string{"/me"}},
	{Name: CmdHelp, Description: "How to use this bot"},
	{Name: CmdCancel, Description: "Abort the current dialog"},
	{Name: CmdAdd, Description: "Add a document to the catalog", AdminOnly: true},
	{Name: CmdStats, Description: "Catalog and subscriber counts", AdminOnly: true},
}

// lookupCommand resolves a normalized name or alias to its canonical command.
func lookupCommand(name string) (commands.Command, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
		for _, a := range c.Aliases {
			if a == name {
				return c, true
			}
		}
	}
	return commands.Command{}, false
}

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("📖 This bot sells access to a catalog of PDF documents.\n")
	b.WriteString("Buy a subscription, then open any document from the list.\n\n")
	for _, c := range Commands {
		if c.Hidden || (c.AdminOnly && !admin) {
			continue
		}
		b.WriteString(c.Name)
		b.WriteString(" · ")
		b.WriteString(c.Description)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// mainMenu returns the reply keyboard rows for userID.
func mainMenu(admin bool) [][]string {
	rows := [][]string{
		{LabelDocuments, LabelSubscribe},
		{LabelStatus},
	}
	if admin {
		rows = append(rows, []string{LabelAdd})
	}
	return rows
}
