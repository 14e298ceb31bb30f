package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"
	"time"

	"github.com/m3rciful/docshelf/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// floodWait reports the retry_after of a 429 answer.
func floodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var fp *tele.FloodError
	if errors.As(err, &fp) && fp != nil {
		return time.Duration(fp.RetryAfter) * time.Second, true
	}
	return 0, false
}

// retryable reports whether err is a transport failure or a 5xx answer.
func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	var apiErr *tele.Error
	return errors.As(err, &apiErr) && apiErr.Code >= 500
}

// classifyError buckets err for the send_failures_total metric.
func classifyError(err error) string {
	var (
		apiErr *tele.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		netErr net.Error
		tlsErr tls.AlertError
	)
	if _, flood := floodWait(err); flood {
		return "http_429"
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &apiErr):
		if apiErr.Code >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}
	return "unknown"
}

// redactToken hides bot tokens that net/http embeds in URL errors.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
