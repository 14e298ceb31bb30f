package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Separator splits a callback key from its payload, as in "doc_42".
const Separator = "_"

// Split parses raw callback data of the form <key>_<payload>. Telebot's
// "\f<unique>|<payload>" encoding is accepted as well.
func Split(data string) (string, string) {
	if strings.HasPrefix(data, "\f") {
		parts := strings.SplitN(strings.TrimPrefix(data, "\f"), "|", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[0]), parts[1]
		}
		return strings.TrimSpace(parts[0]), ""
	}
	key, payload, _ := strings.Cut(data, Separator)
	return strings.TrimSpace(key), payload
}

// Join builds raw callback data from a key and payload parts.
func Join(key string, parts ...string) string {
	if len(parts) == 0 {
		return key
	}
	return key + Separator + strings.Join(parts, Separator)
}

// ParseCallbackData returns the key and payload of cb.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return Split(cb.Data)
}
