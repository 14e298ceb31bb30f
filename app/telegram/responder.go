package telegram

import (
	"context"

	"github.com/m3rciful/docshelf/app/chat"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"
	"github.com/m3rciful/docshelf/core/telegram/keyboard"
	"github.com/m3rciful/docshelf/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// Responder replies through the telebot context of the update being handled.
// Messages go through the shared sender dispatcher; callback and pre-checkout
// answers are sent synchronously.
type Responder struct {
	c tele.Context
}

// NewResponder binds a Responder to c.
func NewResponder(c tele.Context) *Responder {
	return &Responder{c: c}
}

var _ chat.Responder = (*Responder)(nil)

func (r *Responder) Send(_ context.Context, msg chat.Message) error {
	markup := Markup(msg)
	if msg.Markdown {
		return tghelpers.SendMD(r.c, msg.Text, markup)
	}
	if markup == nil {
		return tghelpers.SendText(r.c, msg.Text)
	}
	return tghelpers.SendText(r.c, msg.Text, &tele.SendOptions{ReplyMarkup: markup})
}

func (r *Responder) SendDocument(_ context.Context, fileRef, caption string) error {
	return tghelpers.SendDocument(r.c, fileRef, caption)
}

func (r *Responder) SendInvoice(_ context.Context, inv chat.Invoice) error {
	prices := make([]tele.Price, len(inv.Prices))
	for i, p := range inv.Prices {
		prices[i] = tele.Price{Label: p.Label, Amount: p.Amount}
	}
	return tghelpers.SendInvoice(r.c, tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Token:       inv.ProviderToken,
		Prices:      prices,
	})
}

func (r *Responder) AnswerCallback(_ context.Context, text string) error {
	if r.c.Callback() == nil {
		return nil
	}
	router.MarkCallbackAnswered(r.c)
	if text == "" {
		return r.c.Respond()
	}
	return r.c.Respond(&tele.CallbackResponse{Text: text})
}

func (r *Responder) AnswerCheckout(_ context.Context, ok bool, reason string) error {
	if ok {
		return r.c.Accept()
	}
	return r.c.Accept(reason)
}

// Markup converts the keyboards of msg. Inline keyboards win over menus.
func Markup(msg chat.Message) *tele.ReplyMarkup {
	switch {
	case len(msg.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, len(msg.Inline))
		for i, row := range msg.Inline {
			rows[i] = make([]keyboard.InlineBtn, len(row))
			for j, b := range row {
				rows[i][j] = keyboard.InlineBtn{Text: b.Text, Data: b.Data}
			}
		}
		return keyboard.InlineButtonsRows(rows...)
	case len(msg.Menu) > 0:
		return keyboard.ReplyButtons(msg.Menu...)
	}
	return nil
}
