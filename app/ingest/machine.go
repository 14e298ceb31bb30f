// Package ingest implements the admin dialog that adds a document to the
// catalog: file, then title, then price, then a single durable write.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	"github.com/m3rciful/docshelf/core/telegram/format"
	"github.com/m3rciful/docshelf/core/telegram/state"
	"github.com/m3rciful/docshelf/core/tracing"
)

// Dialog states.
const (
	StateAwaitingFile  state.State = "awaiting_file"
	StateAwaitingTitle state.State = "awaiting_title"
	StateAwaitingPrice state.State = "awaiting_price"
)

// Session data keys.
const (
	keyFileRef  = "file_ref"
	keyFileName = "file_name"
	keyTitle    = "title"
)

// CancelData is the callback data of the inline Cancel button.
const CancelData = "ingest_cancel"

// Outcome summarises what a single event did to the dialog.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomePrompted  Outcome = "prompted"
	OutcomeReprompt  Outcome = "reprompt"
	OutcomeCaptured  Outcome = "captured"
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Input is the kind of event the current state consumes.
type Input int

const (
	InputNone Input = iota
	InputFile
	InputText
)

const component = "service.ingest"

// Reply texts.
const (
	msgAskFile      = "📄 Send the PDF file you want to add.\nSend /cancel to abort."
	msgOnlyFile     = "Please send the document as a file, or /cancel to abort."
	msgOnlyPDF      = "Only PDF files are accepted. Please send a .pdf file, or /cancel to abort."
	msgAskTitle     = "✏️ Now send the document title."
	msgAskPrice     = "💰 Now send the price as a whole number (0 = free)."
	msgOnlyDigits   = "Please send the price using digits only, e.g. 250 or 0 for free."
	msgDuplicate    = "⚠️ This file is already in the catalog. Nothing was saved."
	msgSaveFailed   = "❌ Something went wrong while saving the document. Please try again later."
	msgCancelled    = "Cancelled."
	msgTitlePrefix  = "The title cannot start with \"/\". Please send a plain title."
	msgTitleEmpty   = "The title cannot be empty. Please send the document title."
	msgTitleTooLong = "The title is too long (max %d characters). Please send a shorter title."
)

// Options configures a Machine.
type Options struct {
	Store       storage.Store
	Sessions    state.Manager
	AdminID     int64
	PDFOnly     bool
	MaxTitleLen int
}

// Machine drives the per-user ingestion dialog. Calls for one user must be
// serialized by the caller.
type Machine struct {
	store       storage.Store
	sessions    state.Manager
	adminID     int64
	pdfOnly     bool
	maxTitleLen int
}

// New constructs a Machine.
func New(opts Options) *Machine {
	return &Machine{
		store:       opts.Store,
		sessions:    opts.Sessions,
		adminID:     opts.AdminID,
		pdfOnly:     opts.PDFOnly,
		maxTitleLen: opts.MaxTitleLen,
	}
}

// IsAdmin reports whether userID may run the dialog.
func (m *Machine) IsAdmin(userID int64) bool {
	return m.adminID != 0 && userID == m.adminID
}

// InProgress reports whether userID is mid-dialog.
func (m *Machine) InProgress(userID int64) bool {
	return m.sessions.InProgress(userID)
}

// Expects returns what the user's current state consumes.
func (m *Machine) Expects(userID int64) Input {
	switch m.sessions.Get(userID).State {
	case StateAwaitingFile:
		return InputFile
	case StateAwaitingTitle, StateAwaitingPrice:
		return InputText
	default:
		return InputNone
	}
}

// State returns the user's current dialog state.
func (m *Machine) State(userID int64) state.State {
	return m.sessions.Get(userID).State
}

// Start opens a fresh capture for the admin. Anyone else is ignored.
func (m *Machine) Start(ctx context.Context, ev chat.Event, r chat.Responder) (Outcome, error) {
	uid := ev.Sender.ID
	if !m.IsAdmin(uid) {
		logger.Debug(ctx, component, "ingest.start.denied", slog.Int64("user_id", uid))
		return OutcomeIgnored, nil
	}
	restarted := m.sessions.InProgress(uid)
	m.sessions.Put(uid, state.Session{State: StateAwaitingFile, Data: map[string]string{}})
	logger.Info(ctx, component, "ingest.start",
		slog.Int64("user_id", uid),
		slog.Bool("restarted", restarted),
	)
	return OutcomePrompted, r.Send(ctx, chat.Message{
		Text:   msgAskFile,
		Inline: [][]chat.Button{{{Text: "✖ Cancel", Data: CancelData}}},
	})
}

// Cancel drops any capture and acknowledges.
func (m *Machine) Cancel(ctx context.Context, ev chat.Event, r chat.Responder) (Outcome, error) {
	uid := ev.Sender.ID
	prev := m.sessions.Get(uid)
	m.sessions.Clear(uid)
	if !prev.Idle() {
		metrics.DocumentsIngested.WithLabelValues(string(OutcomeCancelled)).Inc()
		logger.Info(ctx, component, "ingest.cancelled",
			slog.Int64("user_id", uid),
			slog.String("state", string(prev.State)),
		)
	}
	return OutcomeCancelled, r.Send(ctx, chat.Text(msgCancelled))
}

// Handle feeds an event to an in-progress dialog. Events that do not fit the
// current state re-prompt without changing it.
func (m *Machine) Handle(ctx context.Context, ev chat.Event, r chat.Responder) (Outcome, error) {
	uid := ev.Sender.ID
	sess := m.sessions.Get(uid)
	switch sess.State {
	case StateAwaitingFile:
		return m.onFile(ctx, uid, sess, ev, r)
	case StateAwaitingTitle:
		return m.onTitle(ctx, uid, sess, ev, r)
	case StateAwaitingPrice:
		return m.onPrice(ctx, uid, sess, ev, r)
	default:
		return OutcomeIgnored, nil
	}
}

func (m *Machine) onFile(ctx context.Context, uid int64, sess state.Session, ev chat.Event, r chat.Responder) (Outcome, error) {
	if ev.Kind != chat.KindDocument || ev.Document == nil || ev.Document.FileRef == "" {
		return m.reprompt(ctx, uid, sess, &ValidationError{Field: "file", Reason: "not a document"}, msgOnlyFile, r)
	}
	if m.pdfOnly && !IsPDF(ev.Document) {
		return m.reprompt(ctx, uid, sess, &ValidationError{Field: "file", Reason: "not a pdf"}, msgOnlyPDF, r)
	}
	sess.State = StateAwaitingTitle
	sess.Data[keyFileRef] = ev.Document.FileRef
	sess.Data[keyFileName] = ev.Document.FileName
	m.sessions.Put(uid, sess)
	logger.Debug(ctx, component, "ingest.file",
		slog.Int64("user_id", uid),
		slog.String("file_name", ev.Document.FileName),
	)
	return OutcomeCaptured, r.Send(ctx, chat.Text(msgAskTitle))
}

func (m *Machine) onTitle(ctx context.Context, uid int64, sess state.Session, ev chat.Event, r chat.Responder) (Outcome, error) {
	if ev.Kind != chat.KindText && ev.Kind != chat.KindCommand {
		return m.reprompt(ctx, uid, sess, &ValidationError{Field: "title", Reason: "not text"}, msgAskTitle, r)
	}
	title, err := NormalizeTitle(ev.Text, m.maxTitleLen)
	if err != nil {
		return m.reprompt(ctx, uid, sess, err, m.titleHint(err), r)
	}
	sess.State = StateAwaitingPrice
	sess.Data[keyTitle] = title
	m.sessions.Put(uid, sess)
	return OutcomeCaptured, r.Send(ctx, chat.Text(msgAskPrice))
}

func (m *Machine) titleHint(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return msgAskTitle
	}
	switch ve.Reason {
	case "empty":
		return msgTitleEmpty
	case "looks like a command":
		return msgTitlePrefix
	default:
		return fmt.Sprintf(msgTitleTooLong, m.maxTitleLen)
	}
}

func (m *Machine) onPrice(ctx context.Context, uid int64, sess state.Session, ev chat.Event, r chat.Responder) (Outcome, error) {
	if ev.Kind != chat.KindText {
		return m.reprompt(ctx, uid, sess, &ValidationError{Field: "price", Reason: "not text"}, msgOnlyDigits, r)
	}
	price, err := ParsePrice(ev.Text)
	if err != nil {
		return m.reprompt(ctx, uid, sess, err, msgOnlyDigits, r)
	}

	// The capture ends here whatever the write does.
	m.sessions.Clear(uid)
	nd := storage.NewDocument{
		Title:  sess.Value(keyTitle),
		Price:  price,
		FileID: sess.Value(keyFileRef),
	}
	doc, err := m.persist(ctx, nd)
	switch {
	case err == nil:
		metrics.DocumentsIngested.WithLabelValues(string(OutcomeSaved)).Inc()
		logger.Info(ctx, component, "ingest.saved",
			slog.Int64("user_id", uid),
			slog.Int64("document_id", doc.ID),
			slog.Int("price", doc.Price),
		)
		return OutcomeSaved, r.Send(ctx, chat.Text(savedMessage(doc)))
	case errors.Is(err, storage.ErrConflict):
		metrics.DocumentsIngested.WithLabelValues(string(OutcomeDuplicate)).Inc()
		logger.Warn(ctx, component, "ingest.duplicate",
			slog.Int64("user_id", uid),
			slog.String("file_name", sess.Value(keyFileName)),
		)
		return OutcomeDuplicate, r.Send(ctx, chat.Text(msgDuplicate))
	default:
		metrics.DocumentsIngested.WithLabelValues(string(OutcomeFailed)).Inc()
		logger.Error(ctx, component, "ingest.failed",
			slog.Int64("user_id", uid),
			slog.String("err", err.Error()),
		)
		return OutcomeFailed, r.Send(ctx, chat.Text(msgSaveFailed))
	}
}

func (m *Machine) persist(ctx context.Context, nd storage.NewDocument) (doc storage.Document, err error) {
	ctx, span := tracing.Start(ctx, "ingest", "ingest.persist", attribute.Int("price", nd.Price))
	defer func() { tracing.End(span, err) }()

	err = m.store.InTx(ctx, func(tx storage.Store) error {
		var cerr error
		doc, cerr = tx.CreateDocument(ctx, nd)
		return cerr
	})
	return doc, err
}

func (m *Machine) reprompt(ctx context.Context, uid int64, sess state.Session, cause error, text string, r chat.Responder) (Outcome, error) {
	logger.Debug(ctx, component, "ingest.reprompt",
		slog.Int64("user_id", uid),
		slog.String("state", string(sess.State)),
		slog.String("reason", cause.Error()),
	)
	return OutcomeReprompt, r.Send(ctx, chat.Text(text))
}

func savedMessage(d storage.Document) string {
	price := "Free"
	if d.Price > 0 {
		price = format.Number(int64(d.Price))
	}
	return fmt.Sprintf("✅ Document #%d \"%s\" added (price: %s).", d.ID, d.Title, price)
}
