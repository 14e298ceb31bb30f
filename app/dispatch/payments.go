package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/docshelf/app/billing"
	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/storage"
)

func (rt *Router) sendInvoice(ctx context.Context, req *request, months, price int) (Result, error) {
	if err := req.r.AnswerCallback(ctx, ""); err != nil {
		return Result{Handler: "invoice", Outcome: "fail"}, err
	}
	plan, err := rt.billing.Catalog().Match(billing.Intent{Months: months, Price: price})
	if err != nil {
		var pv *billing.PaymentValidationError
		errors.As(err, &pv)
		return Result{Handler: "invoice", Outcome: "stale"}, req.r.Send(ctx, chat.Message{
			Text:   pv.Reason,
			Inline: subscribeButton(),
		})
	}
	return Result{Handler: "invoice", Outcome: "ok"}, req.r.SendInvoice(ctx, rt.billing.Invoice(plan))
}

// onCheckout answers a pre-checkout query. This is the last point a payment
// can be refused.
func (rt *Router) onCheckout(ctx context.Context, req *request) (Result, error) {
	if req.ev.Checkout == nil {
		return Result{Handler: "checkout", Outcome: "ignored"}, nil
	}
	if err := rt.billing.ValidateCheckout(ctx, *req.ev.Checkout); err != nil {
		var pv *billing.PaymentValidationError
		reason := "This purchase cannot be completed."
		if errors.As(err, &pv) {
			reason = pv.Reason
		}
		return Result{Handler: "checkout", Outcome: "rejected"}, req.r.AnswerCheckout(ctx, false, reason)
	}
	return Result{Handler: "checkout", Outcome: "accepted"}, req.r.AnswerCheckout(ctx, true, "")
}

func (rt *Router) onPayment(ctx context.Context, req *request) (Result, error) {
	if req.ev.Payment == nil {
		return Result{Handler: "payment", Outcome: "ignored"}, nil
	}
	st, err := rt.billing.Settle(ctx, billing.Receipt{
		User: storage.NewUser{
			ExternalID:  req.ev.Sender.ID,
			DisplayName: req.ev.Sender.DisplayName,
			Handle:      handle(req.ev.Sender.Handle),
		},
		Payment: *req.ev.Payment,
	})
	if err != nil {
		text := fmt.Sprintf("⚠️ We received your payment but could not activate your subscription yet.\nPlease contact support and quote charge id %s.",
			req.ev.Payment.TelegramChargeID)
		if rt.support != "" {
			text += "\nSupport: " + rt.support
		}
		return Result{Handler: "payment", Outcome: "fail"}, errors.Join(err, req.r.Send(ctx, chat.Text(text)))
	}

	text := fmt.Sprintf("✅ Payment received! Your subscription is active until %s.", st.ExpiresAt.UTC().Format(dateLayout))
	outcome := "settled"
	if st.Duplicate {
		text = fmt.Sprintf("This payment was already applied. Your subscription is active until %s.", st.ExpiresAt.UTC().Format(dateLayout))
		outcome = "duplicate"
	}
	return Result{Handler: "payment", Outcome: outcome}, req.r.Send(ctx, chat.Message{Text: text, Menu: mainMenu(req.admin)})
}
