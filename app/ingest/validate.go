package ingest

import (
	"fmt"
	"mime"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"

	"github.com/m3rciful/docshelf/app/chat"
)

// ValidationError explains why an input was re-prompted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ingest: invalid %s: %s", e.Field, e.Reason)
}

// Code names the error for handler summaries.
func (e *ValidationError) Code() string { return "invalid_" + e.Field }

// MaxPrice caps the price an admin can enter.
const MaxPrice = 1_000_000_000

// ParsePrice reads a non-negative integer price. ASCII, Arabic-Indic,
// Persian and full-width digits are accepted, as are ',', '_' and space
// thousands separators.
func ParsePrice(s string) (int, error) {
	t := transform.Chain(width.Fold, runes.Map(foldDigit), runes.Remove(runes.Predicate(isSeparator)))
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil || folded == "" {
		return 0, &ValidationError{Field: "price", Reason: "empty"}
	}
	for _, r := range folded {
		if r < '0' || r > '9' {
			return 0, &ValidationError{Field: "price", Reason: "not a number"}
		}
	}
	n, err := strconv.Atoi(folded)
	if err != nil || n > MaxPrice {
		return 0, &ValidationError{Field: "price", Reason: "too large"}
	}
	return n, nil
}

func foldDigit(r rune) rune {
	switch {
	case r >= '\u0660' && r <= '\u0669': // Arabic-Indic
		return '0' + (r - '\u0660')
	case r >= '\u06f0' && r <= '\u06f9': // Extended Arabic-Indic (Persian)
		return '0' + (r - '\u06f0')
	}
	return r
}

func isSeparator(r rune) bool {
	switch r {
	case ',', '_', ' ', '\u00a0', '\u2009', '\u202f', '\u066c':
		return true
	}
	return false
}

// NormalizeTitle trims and collapses whitespace and checks length and shape.
func NormalizeTitle(s string, maxLen int) (string, error) {
	title := strings.Join(strings.Fields(s), " ")
	switch {
	case title == "":
		return "", &ValidationError{Field: "title", Reason: "empty"}
	case strings.HasPrefix(title, "/"):
		return "", &ValidationError{Field: "title", Reason: "looks like a command"}
	case maxLen > 0 && utf8.RuneCountInString(title) > maxLen:
		return "", &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", maxLen)}
	}
	return title, nil
}

// IsPDF reports whether the attachment is a PDF by MIME type or file name.
func IsPDF(a *chat.Attachment) bool {
	if a == nil {
		return false
	}
	if mt, _, err := mime.ParseMediaType(a.MIME); err == nil && mt == "application/pdf" {
		return true
	}
	return strings.EqualFold(path.Ext(a.FileName), ".pdf")
}
