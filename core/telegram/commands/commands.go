package commands

import "strings"

// Command describes a bot command for the Telegram command menu and help text.
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Normalize turns "/Start@my_bot args" into "/start". Text without a leading
// slash yields "".
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "/" {
		return ""
	}
	return strings.ToLower(name)
}

// Args returns the text after the command name, trimmed.
func Args(text string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(rest)
}
