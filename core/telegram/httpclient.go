package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	"github.com/m3rciful/docshelf/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	tlsHandshake     = 5 * time.Second
	idleConnTimeout  = 30 * time.Second
	keepAlive        = 30 * time.Second
	requestHeadroom  = 20 * time.Second
	retryAttempts    = 3
	retryBackoffStep = 2 * time.Second
)

// BuildHTTPClient returns a Bot API client whose overall timeout leaves
// headroom above longPoll, so getUpdates is never cut off mid-wait.
// Transient network failures are retried when the request body can be replayed.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: longPoll + requestHeadroom,
		Transport: &retryTransport{
			base:     transport,
			attempts: retryAttempts,
			backoff:  retryBackoffStep,
		},
	}
}

type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	// Bodies without GetBody cannot be replayed.
	if err == nil || (req.Body != nil && req.GetBody == nil) {
		return resp, err
	}

	// The URL path embeds the bot token; only its last segment is logged.
	method := path.Base(req.URL.Path)
	for attempt := 2; attempt <= t.attempts && netutil.ShouldRetry(err); attempt++ {
		delay := t.backoff * time.Duration(attempt-1)
		logger.TG.Debug("bot api retry",
			slog.String("event", "tg.api.retry"),
			slog.String("op", method),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		metrics.APIRetries.WithLabelValues(method).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			next.Body = body
		}
		if resp, err = t.base.RoundTrip(next); err == nil {
			return resp, nil
		}
	}
	return nil, err
}
