package middleware

import (
	"log/slog"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware seeds the update context (rid, ids) before anything else
// logs, and emits a sampled debug line describing what arrived.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the update without its identifiers, which the
// context already carries.
func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}

	var payload string
	switch {
	case upd.Callback != nil:
		key, data := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		payload = data
	case upd.PreCheckoutQuery != nil:
		payload = upd.PreCheckoutQuery.Payload
	case upd.Message != nil && upd.Message.Payment != nil:
		payload = upd.Message.Payment.Payload
	case upd.Message != nil && upd.Message.Document != nil:
		attrs = append(attrs, slog.String("mime", upd.Message.Document.MIME))
		payload = upd.Message.Document.FileName
	case upd.Message != nil:
		payload = upd.Message.Text
	}
	// The handler drops empty strings, so blanks never reach the line.
	return append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
}
