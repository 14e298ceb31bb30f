package middleware

import tele "gopkg.in/telebot.v4"

// Update kinds reported by UpdateKind.
const (
	KindMessage     = "message"
	KindCallback    = "callback"
	KindInlineQuery = "inline_query"
	KindPreCheckout = "pre_checkout"
	KindPayment     = "payment"
	KindOther       = "other"
)

// UpdateKind classifies an update for rate limiting, serialization and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.PreCheckoutQuery != nil:
		return KindPreCheckout
	case upd.Message != nil && upd.Message.Payment != nil:
		return KindPayment
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInlineQuery
	}
	return KindOther
}

// senderID returns the id of the user behind an update, or 0.
func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}
