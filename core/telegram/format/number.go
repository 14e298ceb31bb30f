package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number renders n with thousands separators, e.g. 12000 -> "12,000".
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}
