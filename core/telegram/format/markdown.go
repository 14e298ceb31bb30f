package format

import "strings"

// mdV1 escapes the characters Telegram's legacy Markdown treats as entity
// delimiters. Escapes only work outside entities.
var mdV1 = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// MD escapes text for Markdown V1, the parse mode used by SendMD.
func MD(text string) string {
	return mdV1.Replace(text)
}
