package chat

import "context"

// Button is an inline keyboard button with opaque callback data.
type Button struct {
	Text string
	Data string
}

// Message is an outbound text message.
type Message struct {
	Text string
	// Markdown selects Telegram Markdown parse mode.
	Markdown bool
	// Inline attaches an inline keyboard, one slice per row.
	Inline [][]Button
	// Menu replaces the reply keyboard, one slice per row.
	Menu [][]string
}

// Price is one labelled invoice line in the smallest currency unit.
type Price struct {
	Label  string
	Amount int
}

// Invoice is a Telegram Payments invoice.
type Invoice struct {
	Title         string
	Description   string
	Payload       string
	Currency      string
	ProviderToken string
	Prices        []Price
}

// Total sums the invoice lines.
func (i Invoice) Total() int {
	n := 0
	for _, p := range i.Prices {
		n += p.Amount
	}
	return n
}

// Responder delivers replies to the chat the current event came from.
type Responder interface {
	Send(ctx context.Context, msg Message) error
	SendDocument(ctx context.Context, fileRef, caption string) error
	SendInvoice(ctx context.Context, inv Invoice) error
	// AnswerCallback stops the client's spinner, optionally with a toast.
	AnswerCallback(ctx context.Context, text string) error
	// AnswerCheckout approves or rejects a pre-checkout query.
	AnswerCheckout(ctx context.Context, ok bool, reason string) error
}

// Text is a shorthand for a plain message.
func Text(s string) Message {
	return Message{Text: s}
}
