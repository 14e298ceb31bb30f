package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/docshelf/app/access"
	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/callbacks"
	"github.com/m3rciful/docshelf/core/telegram/format"
)

const (
	msgFailure      = "❌ Something went wrong. Please try again later."
	msgEmptyCatalog = "The catalog is empty for now. Please check back later."
	dateLayout      = "2 Jan 2006 15:04 MST"
)

func (rt *Router) showStart(ctx context.Context, req *request) (Result, error) {
	name := strings.TrimSpace(req.ev.Sender.DisplayName)
	if name == "" && req.user != nil {
		name = format.DerefString(req.user.Handle, "")
	}
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hello, %s!\n\nHere you can browse the document catalog and download any document with an active subscription.", name)
	if req.admin {
		text += "\n\nYou are the administrator: use \"" + LabelAdd + "\" or /add to add documents."
	}
	return Result{Handler: "start", Outcome: "ok"}, req.r.Send(ctx, chat.Message{Text: text, Menu: mainMenu(req.admin)})
}

// PriceLabel renders a document price for the catalog.
func PriceLabel(price int) string {
	if price <= 0 {
		return "Free"
	}
	return format.Number(int64(price))
}

func (rt *Router) showCatalog(ctx context.Context, req *request) (Result, error) {
	docs, err := rt.store.ListDocuments(ctx)
	if err != nil {
		logger.Error(ctx, "service.catalog", "catalog.list.failed", slog.String("err", err.Error()))
		return Result{Handler: "catalog", Outcome: "fail"}, req.r.Send(ctx, chat.Text(msgFailure))
	}
	if len(docs) == 0 {
		return Result{Handler: "catalog", Outcome: "empty"}, req.r.Send(ctx, chat.Text(msgEmptyCatalog))
	}
	for _, d := range docs {
		msg := chat.Message{
			// Markdown V1 has no escapes inside an entity, so the title stays
			// outside the bold run.
			Text:     fmt.Sprintf("📄 %s\n*Price:* %s", format.MD(d.Title), PriceLabel(d.Price)),
			Markdown: true,
			Inline: [][]chat.Button{{{
				Text: "📥 Get document",
				Data: callbacks.Join(CallbackDocument, strconv.FormatInt(d.ID, 10)),
			}}},
		}
		if err := req.r.Send(ctx, msg); err != nil {
			return Result{Handler: "catalog", Outcome: "fail"}, err
		}
	}
	logger.Debug(ctx, "service.catalog", "catalog.listed", slog.Int("count", len(docs)))
	return Result{Handler: "catalog", Outcome: "ok"}, nil
}

func (rt *Router) showPlans(ctx context.Context, req *request) (Result, error) {
	plans := rt.billing.Catalog().Plans()
	if len(plans) == 0 {
		return Result{Handler: "plans", Outcome: "empty"}, req.r.Send(ctx, chat.Text("Subscriptions are not available right now."))
	}
	rows := make([][]chat.Button, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []chat.Button{{
			Text: fmt.Sprintf("%s · %s %s", p.Label, format.Number(int64(p.Price)), rt.billing.Currency()),
			Data: callbacks.Join(CallbackSubscribe, strconv.Itoa(p.Months), strconv.Itoa(p.Price)),
		}})
	}
	return Result{Handler: "plans", Outcome: "ok"}, req.r.Send(ctx, chat.Message{
		Text:   "💳 Choose a subscription plan. Every plan unlocks the whole catalog.",
		Inline: rows,
	})
}

func (rt *Router) showStatus(ctx context.Context, req *request) (Result, error) {
	if req.user == nil {
		return Result{Handler: "status", Outcome: "fail"}, req.r.Send(ctx, chat.Text(msgFailure))
	}
	now := rt.now()
	exp := req.user.SubscriptionExpiresAt
	if !access.IsSubscribed(exp, now) {
		text := "You have no active subscription."
		if last := format.DerefTime(exp, dateLayout, ""); last != "" {
			text += "\nYour last subscription ended on " + last + "."
		}
		return Result{Handler: "status", Outcome: "inactive"}, req.r.Send(ctx, chat.Message{
			Text:   text,
			Inline: subscribeButton(),
		})
	}
	text := fmt.Sprintf("✅ Your subscription is active until %s (%s left).",
		exp.UTC().Format(dateLayout), daysLabel(access.DaysLeft(exp, now)))
	return Result{Handler: "status", Outcome: "active"}, req.r.Send(ctx, chat.Text(text))
}

func (rt *Router) showStats(ctx context.Context, req *request) (Result, error) {
	st, err := rt.store.Stats(ctx, rt.now())
	if err != nil {
		logger.Error(ctx, "service.catalog", "stats.failed", slog.String("err", err.Error()))
		return Result{Handler: "stats", Outcome: "fail"}, req.r.Send(ctx, chat.Text(msgFailure))
	}
	text := fmt.Sprintf("📊 Users: %s\nDocuments: %s\nActive subscribers: %s\nPayments: %s",
		format.Number(st.Users), format.Number(st.Documents),
		format.Number(st.ActiveSubscribers), format.Number(st.Payments))
	return Result{Handler: "stats", Outcome: "ok"}, req.r.Send(ctx, chat.Text(text))
}

func subscribeButton() [][]chat.Button {
	return [][]chat.Button{{{Text: LabelSubscribe, Data: CallbackSubscribe}}}
}

func daysLabel(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}

// fetchDocument gates a download on the subscription before touching the
// document table.
func (rt *Router) fetchDocument(ctx context.Context, req *request, id int64) (Result, error) {
	if err := req.r.AnswerCallback(ctx, ""); err != nil {
		return Result{Handler: "document", Outcome: "fail"}, err
	}
	if req.user == nil {
		return Result{Handler: "document", Outcome: "fail"}, req.r.Send(ctx, chat.Text(msgFailure))
	}
	if !rt.allow(ctx, req.user, id) {
		return Result{Handler: "document", Outcome: "denied"}, req.r.Send(ctx, chat.Message{
			Text:   "🔒 An active subscription is required to download documents.\nChoose a plan to get access to the whole catalog.",
			Inline: subscribeButton(),
		})
	}

	doc, err := rt.store.FindDocumentByID(ctx, id)
	switch {
	case err == nil:
	case storage.IsPersistence(err):
		logger.Error(ctx, "service.catalog", "document.find.failed",
			slog.Int64("document_id", id),
			slog.String("err", err.Error()),
		)
		return Result{Handler: "document", Outcome: "fail"}, req.r.Send(ctx, chat.Text(msgFailure))
	default:
		return Result{Handler: "document", Outcome: "not_found"}, req.r.Send(ctx, chat.Text("This document is no longer available."))
	}

	logger.Info(ctx, "service.catalog", "document.sent",
		slog.Int64("user_id", req.ev.Sender.ID),
		slog.Int64("document_id", doc.ID),
	)
	return Result{Handler: "document", Outcome: "ok"}, req.r.SendDocument(ctx, doc.FileID, doc.Title)
}
