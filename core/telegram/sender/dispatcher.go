// Package sender delivers outbound Bot API calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize bounds each shard's backlog.
	QueueSize int
	// Workers is the number of shards; each shard runs one worker so jobs
	// sharing a key are delivered in order.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, flood waits included.
	MaxDuration time.Duration
	// GlobalRPS caps outbound calls across all chats. Telegram allows about
	// 30 messages per second per bot; 0 disables the cap.
	GlobalRPS float64
}

type job struct {
	ctx      context.Context
	key      int64
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs are sharded by key (the chat id) so one chat's messages never reorder.
type Dispatcher struct {
	opts    Options
	shards  []chan job
	limiter *rate.Limiter
	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	wg      sync.WaitGroup
	errs    atomic.Uint64
}

// NewDispatcher starts a dispatcher; zero options get defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:    opts,
		shards:  make([]chan job, opts.Workers),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if opts.GlobalRPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.GlobalRPS), max(1, int(opts.GlobalRPS)))
	}

	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

// Shard returns the shard index that serves key.
func (d *Dispatcher) Shard(key int64) int {
	n := int64(len(d.shards))
	idx := key % n
	if idx < 0 {
		idx += n
	}
	return int(idx)
}

// Enqueue schedules run on the shard owning key. run must be idempotent if
// retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case d.shards[d.Shard(key)] <- job{ctx: ctx, key: key, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		if err := d.deliver(j); err != nil {
			d.errs.Add(1)
			metrics.SendFailures.WithLabelValues(j.action, classifyError(err)).Inc()
		}
	}
}

// deliver runs j until it succeeds, fails permanently, or runs out of
// attempts or time. A flood-wait answer sleeps for the server's retry_after
// and does not consume an attempt.
func (d *Dispatcher) deliver(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()
	start := time.Now()
	attrs := []slog.Attr{slog.String("action", j.action), slog.String("endpoint", j.endpoint)}

	attempts := d.opts.MaxRetries + 1
	for attempt := 1; ; {
		err := d.limiter.Wait(ctx)
		if err == nil {
			err = j.run()
		}
		if err == nil {
			logger.Debug(j.ctx, "tg.sender", "send.success", append(attrs,
				slog.Int("attempts", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return nil
		}

		delay, flood := floodWait(err)
		if !flood {
			if !retryable(err) || attempt == attempts {
				return d.fail(j, attrs, err, attempt, start)
			}
			delay = d.opts.RetryBackoff * time.Duration(attempt)
			attempt++
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry", append(attrs,
			slog.Int("attempts", attempt),
			slog.Bool("rate_limited", flood),
			slog.Duration("backoff", delay),
		)...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return d.fail(j, attrs, errors.Join(ctx.Err(), err), attempt, start)
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) fail(j job, attrs []slog.Attr, err error, attempt int, start time.Time) error {
	logger.Error(j.ctx, "tg.sender", "send.fail", append(attrs,
		slog.String("err", redactToken(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}
