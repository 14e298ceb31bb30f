package middleware

import (
	"github.com/m3rciful/docshelf/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// UpdateMetricsMiddleware counts inbound updates by kind.
func UpdateMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.UpdatesTotal.WithLabelValues(UpdateKind(c.Update())).Inc()
		return next(c)
	}
}
