package dispatch

import (
	"context"
	"log/slog"

	"github.com/m3rciful/docshelf/app/access"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
)

// allow applies the subscription gate. Every document, free ones included,
// needs an active subscription.
func (rt *Router) allow(ctx context.Context, u *storage.User, documentID int64) bool {
	if access.IsSubscribed(u.SubscriptionExpiresAt, rt.now()) {
		return true
	}
	metrics.AccessDenied.Inc()
	logger.Info(ctx, "service.access", "access.denied",
		slog.Int64("user_id", u.ExternalID),
		slog.Int64("document_id", documentID),
	)
	return false
}
