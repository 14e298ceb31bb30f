// Package chat is the transport-neutral boundary between the bot's services and
// the messaging platform: inbound events in, outbound replies through Responder.
package chat

// Kind tags an inbound Event. Every event carries exactly one kind.
type Kind string

const (
	KindCommand     Kind = "command"
	KindText        Kind = "text"
	KindDocument    Kind = "document"
	KindMedia       Kind = "media"
	KindCallback    Kind = "callback"
	KindPreCheckout Kind = "pre_checkout"
	KindPayment     Kind = "payment"
)

// Sender identifies the account behind an event.
type Sender struct {
	ID          int64
	DisplayName string
	Handle      string
}

// Attachment is a file the user sent.
type Attachment struct {
	FileRef  string
	UniqueID string
	FileName string
	MIME     string
	Size     int64
}

// Checkout is a pre-checkout query to approve or reject.
type Checkout struct {
	ID       string
	Currency string
	Total    int
	Payload  string
}

// Payment is a successful-payment notification.
type Payment struct {
	Currency         string
	Total            int
	Payload          string
	TelegramChargeID string
	ProviderChargeID string
}

// Event is one inbound update. Fields other than Kind, Sender and ChatID are
// populated according to Kind:
//
//	KindCommand     Command, Args, Text
//	KindText        Text
//	KindDocument    Document, Text (caption)
//	KindMedia       Text (caption)
//	KindCallback    Callback
//	KindPreCheckout Checkout
//	KindPayment     Payment
type Event struct {
	Kind   Kind
	Sender Sender
	ChatID int64

	Text     string
	Command  string
	Args     string
	Document *Attachment
	Callback string
	Checkout *Checkout
	Payment  *Payment
}

// HasSender reports whether the event can be attributed to a user.
func (e Event) HasSender() bool {
	return e.Sender.ID != 0
}
