// Package telegram adapts telebot updates to chat events and chat replies to
// telebot sends.
package telegram

import (
	"strings"

	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/core/telegram/callbacks"
	"github.com/m3rciful/docshelf/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// EventFrom converts the update in c. It reports false for updates the bot
// does not handle (edited messages, inline queries, service messages).
func EventFrom(c tele.Context) (chat.Event, bool) {
	upd := c.Update()
	ev := chat.Event{Sender: senderOf(c.Sender())}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	} else {
		ev.ChatID = ev.Sender.ID
	}

	switch {
	case upd.PreCheckoutQuery != nil:
		q := upd.PreCheckoutQuery
		ev.Sender = senderOf(q.Sender)
		ev.Kind = chat.KindPreCheckout
		ev.Checkout = &chat.Checkout{ID: q.ID, Currency: q.Currency, Total: q.Total, Payload: q.Payload}
		return ev, true

	case upd.Callback != nil:
		cb := upd.Callback
		ev.Kind = chat.KindCallback
		ev.Callback = cb.Data
		if cb.Unique != "" {
			ev.Callback = callbacks.Join(cb.Unique, cb.Data)
		}
		return ev, true

	case upd.Message != nil:
		return messageEvent(ev, upd.Message)
	}
	return ev, false
}

func messageEvent(ev chat.Event, m *tele.Message) (chat.Event, bool) {
	switch {
	case m.Payment != nil:
		p := m.Payment
		ev.Kind = chat.KindPayment
		ev.Payment = &chat.Payment{
			Currency:         p.Currency,
			Total:            p.Total,
			Payload:          p.Payload,
			TelegramChargeID: p.TelegramChargeID,
			ProviderChargeID: p.ProviderChargeID,
		}
	case m.Document != nil:
		d := m.Document
		ev.Kind = chat.KindDocument
		ev.Text = m.Caption
		ev.Document = &chat.Attachment{
			FileRef:  d.FileID,
			UniqueID: d.UniqueID,
			FileName: d.FileName,
			MIME:     d.MIME,
			Size:     d.FileSize,
		}
	case m.Photo != nil, m.Video != nil, m.Audio != nil, m.Voice != nil, m.Sticker != nil:
		ev.Kind = chat.KindMedia
		ev.Text = m.Caption
	case m.Text != "":
		ev.Text = m.Text
		if name := commands.Normalize(m.Text); name != "" {
			ev.Kind = chat.KindCommand
			ev.Command = name
			ev.Args = commands.Args(m.Text)
		} else {
			ev.Kind = chat.KindText
		}
	default:
		return ev, false
	}
	return ev, true
}

func senderOf(u *tele.User) chat.Sender {
	if u == nil {
		return chat.Sender{}
	}
	return chat.Sender{
		ID:          u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Handle:      u.Username,
	}
}
