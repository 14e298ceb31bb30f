// Package dispatch classifies inbound chat events and routes them to the
// catalog screens, the access gate, billing and the ingestion dialog.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/m3rciful/docshelf/app/billing"
	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/ingest"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/callbacks"
	"github.com/m3rciful/docshelf/core/telegram/commands"
	"github.com/m3rciful/docshelf/core/tracing"
)

// Result names the route an event took and how it ended.
type Result struct {
	Handler string
	Outcome string
}

// Options wires a Router.
type Options struct {
	Store   storage.Store
	Billing *billing.Service
	Ingest  *ingest.Machine
	AdminID int64
	// SupportContact is shown when a payment cannot be settled.
	SupportContact string
	Now            func() time.Time
}

// Router dispatches events. Calls for one user must be serialized by the
// caller; different users may be handled concurrently.
type Router struct {
	store   storage.Store
	billing *billing.Service
	ingest  *ingest.Machine
	adminID int64
	support string
	now     func() time.Time
}

// New constructs a Router.
func New(opts Options) *Router {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		store:   opts.Store,
		billing: opts.Billing,
		ingest:  opts.Ingest,
		adminID: opts.AdminID,
		support: opts.SupportContact,
		now:     now,
	}
}

// request is the per-event view handlers work with.
type request struct {
	ev    chat.Event
	r     chat.Responder
	user  *storage.User
	admin bool
}

// Handle routes one event. Errors returned are delivery or persistence
// failures that were not already reported to the user.
func (rt *Router) Handle(ctx context.Context, ev chat.Event, r chat.Responder) (res Result, err error) {
	ctx, span := tracing.Start(ctx, "dispatch", "dispatch.handle",
		attribute.String("kind", string(ev.Kind)),
		attribute.Int64("user_id", ev.Sender.ID),
	)
	defer func() {
		span.SetAttributes(attribute.String("handler", res.Handler), attribute.String("outcome", res.Outcome))
		tracing.End(span, err)
	}()

	req := &request{ev: ev, r: r, admin: rt.adminID != 0 && ev.Sender.ID == rt.adminID}
	if ev.HasSender() {
		u, uerr := storage.EnsureUser(ctx, rt.store, storage.NewUser{
			ExternalID:  ev.Sender.ID,
			DisplayName: ev.Sender.DisplayName,
			Handle:      handle(ev.Sender.Handle),
		})
		if uerr != nil {
			logger.Error(ctx, "service.users", "user.ensure.failed",
				slog.Int64("user_id", ev.Sender.ID),
				slog.String("err", uerr.Error()),
			)
		} else {
			req.user = &u
		}
	}

	switch ev.Kind {
	case chat.KindCommand:
		return rt.onCommand(ctx, req)
	case chat.KindText:
		return rt.onText(ctx, req)
	case chat.KindDocument, chat.KindMedia:
		return rt.onAttachment(ctx, req)
	case chat.KindCallback:
		return rt.onCallback(ctx, req)
	case chat.KindPreCheckout:
		return rt.onCheckout(ctx, req)
	case chat.KindPayment:
		return rt.onPayment(ctx, req)
	default:
		return Result{Handler: "unknown", Outcome: "ignored"}, nil
	}
}

func (rt *Router) onCommand(ctx context.Context, req *request) (Result, error) {
	name := req.ev.Command
	if name == "" {
		name = commands.Normalize(req.ev.Text)
	}
	uid := req.ev.Sender.ID

	switch name {
	case CmdCancel:
		return rt.ingestResult("ingest.cancel")(rt.ingest.Cancel(ctx, req.ev, req.r))
	case CmdAdd:
		return rt.ingestResult("ingest.start")(rt.ingest.Start(ctx, req.ev, req.r))
	}
	if rt.ingest.InProgress(uid) {
		return rt.ingestResult("ingest.input")(rt.ingest.Handle(ctx, req.ev, req.r))
	}

	cmd, ok := lookupCommand(name)
	if !ok || (cmd.AdminOnly && !req.admin) {
		return Result{Handler: "command.unknown", Outcome: "ignored"},
			req.r.Send(ctx, chat.Text("Unknown command. Send /help to see what I can do."))
	}
	switch cmd.Name {
	case CmdStart:
		return rt.showStart(ctx, req)
	case CmdHelp:
		return Result{Handler: "help", Outcome: "ok"}, req.r.Send(ctx, chat.Message{Text: helpText(req.admin), Menu: mainMenu(req.admin)})
	case CmdDocuments:
		return rt.showCatalog(ctx, req)
	case CmdSubscribe:
		return rt.showPlans(ctx, req)
	case CmdStatus:
		return rt.showStatus(ctx, req)
	case CmdStats:
		return rt.showStats(ctx, req)
	}
	return Result{Handler: "command.unknown", Outcome: "ignored"}, nil
}

func (rt *Router) onText(ctx context.Context, req *request) (Result, error) {
	uid := req.ev.Sender.ID
	inProgress := rt.ingest.InProgress(uid)
	if inProgress && rt.ingest.Expects(uid) == ingest.InputText {
		return rt.ingestResult("ingest.input")(rt.ingest.Handle(ctx, req.ev, req.r))
	}

	switch req.ev.Text {
	case LabelDocuments:
		return rt.showCatalog(ctx, req)
	case LabelSubscribe:
		return rt.showPlans(ctx, req)
	case LabelStatus:
		return rt.showStatus(ctx, req)
	case LabelAdd:
		// Start ignores non-admins silently, same as /add.
		return rt.ingestResult("ingest.start")(rt.ingest.Start(ctx, req.ev, req.r))
	}
	if inProgress {
		return rt.ingestResult("ingest.input")(rt.ingest.Handle(ctx, req.ev, req.r))
	}
	return Result{Handler: "text.freeform", Outcome: "hint"}, req.r.Send(ctx, chat.Message{
		Text: "Please use the menu below, or send /help.",
		Menu: mainMenu(req.admin),
	})
}

func (rt *Router) onAttachment(ctx context.Context, req *request) (Result, error) {
	if rt.ingest.InProgress(req.ev.Sender.ID) {
		return rt.ingestResult("ingest.input")(rt.ingest.Handle(ctx, req.ev, req.r))
	}
	hint := "I only understand menu buttons and commands. Send /help to see them."
	if req.admin && req.ev.Kind == chat.KindDocument {
		hint = "To add a document to the catalog, send /add first."
	}
	return Result{Handler: "attachment", Outcome: "hint"}, req.r.Send(ctx, chat.Text(hint))
}

func (rt *Router) onCallback(ctx context.Context, req *request) (Result, error) {
	if req.ev.Callback == ingest.CancelData {
		if err := req.r.AnswerCallback(ctx, ""); err != nil {
			return Result{Handler: "ingest.cancel", Outcome: "fail"}, err
		}
		return rt.ingestResult("ingest.cancel")(rt.ingest.Cancel(ctx, req.ev, req.r))
	}

	key, payload := callbacks.Split(req.ev.Callback)
	switch key {
	case CallbackDocument:
		id, err := callbacks.PayloadInt64(payload)
		if err == nil && id > 0 {
			return rt.fetchDocument(ctx, req, id)
		}
	case CallbackSubscribe:
		if payload == "" {
			if err := req.r.AnswerCallback(ctx, ""); err != nil {
				return Result{Handler: "plans", Outcome: "fail"}, err
			}
			return rt.showPlans(ctx, req)
		}
		months, price, err := callbacks.PayloadTwoInt(payload)
		if err == nil {
			return rt.sendInvoice(ctx, req, months, price)
		}
	}
	logger.Debug(ctx, "service.catalog", "callback.unknown", slog.String("data", req.ev.Callback))
	return Result{Handler: "callback.unknown", Outcome: "ignored"}, req.r.AnswerCallback(ctx, "This button is no longer valid.")
}

func (rt *Router) ingestResult(handler string) func(ingest.Outcome, error) (Result, error) {
	return func(o ingest.Outcome, err error) (Result, error) {
		return Result{Handler: handler, Outcome: string(o)}, err
	}
}

func handle(h string) *string {
	if h == "" {
		return nil
	}
	return &h
}
