// Package fetch wraps outbound HTTP calls with retries, backoff and
// per-endpoint circuit breaking.
package fetch

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tariff-engine/internal/errors"
)

// Options configures a Client.
type Options struct {
	// MaxAttempts bounds retries inside one logical call
	MaxAttempts int

	// BackoffBase is the base interval for exponential backoff
	BackoffBase time.Duration

	// BreakerThreshold is the consecutive-failure count that opens a circuit
	BreakerThreshold int

	// BreakerCooldown is the open-circuit rejection window
	BreakerCooldown time.Duration
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:      3,
		BackoffBase:      250 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Client is a resilient HTTP GET client. One Client's breaker set is shared
// across all calls for the process lifetime.
type Client struct {
	http     *http.Client
	breakers *BreakerSet
	opts     Options
	log      *zap.Logger

	// sleep is injectable so tests do not wait on real backoff
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client around the given http.Client (nil means
// http.DefaultClient; per-call deadlines come from the caller's context).
func NewClient(httpClient *http.Client, opts Options, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 250 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:     httpClient,
		breakers: NewBreakerSet(opts.BreakerThreshold, opts.BreakerCooldown),
		opts:     opts,
		log:      log,
		sleep:    sleepCtx,
	}
}

// Breakers exposes the breaker set for inspection.
func (c *Client) Breakers() *BreakerSet {
	return c.breakers
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get fetches url under the named breaker, retrying transient failures.
//
// Retry policy within one logical call: 429 honors a positive Retry-After
// header (seconds), otherwise waits a short jittered interval; 5xx and
// transport failures back off exponentially with jitter. A context
// cancellation (deadline firing) aborts immediately, is never retried and
// never counts retries; it surfaces as a TIMEOUT error, and a half-open
// trial it interrupts releases its slot rather than staying held. Exhausted
// retries record one breaker failure; any success resets the breaker.
func (c *Client) Get(ctx context.Context, url, breakerID string) ([]byte, error) {
	if err := c.breakers.Allow(breakerID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, lastDelay(lastErr, attempt, c.opts.BackoffBase)); err != nil {
				c.breakers.ReleaseTrial(breakerID)
				return nil, errors.Timeout("request cancelled during backoff", err)
			}
		}

		body, retryable, err := c.attempt(ctx, url)
		if err == nil {
			c.breakers.RecordSuccess(breakerID)
			return body, nil
		}
		if ctx.Err() != nil {
			// Deadline fired: propagate distinctly, no retry. A cancelled
			// half-open trial must give its slot back.
			c.breakers.ReleaseTrial(breakerID)
			return nil, errors.Timeout("upstream call cancelled", ctx.Err())
		}
		lastErr = err
		if !retryable {
			break
		}
		c.log.Debug("retrying upstream call",
			zap.String("endpoint", breakerID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	c.breakers.RecordFailure(breakerID)
	return nil, lastErr
}

// retryAfterError carries the server-requested delay out of an attempt.
type retryAfterError struct {
	err   *errors.Error
	delay time.Duration
}

func (r *retryAfterError) Error() string { return r.err.Error() }
func (r *retryAfterError) Unwrap() error { return r.err }

// attempt performs a single GET. The second return reports retryability.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, errors.Upstream("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure; retryable unless the context killed it,
		// which Get checks before retrying.
		return nil, true, errors.Upstream("upstream request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, errors.Upstream("failed to read response body", err)
		}
		return body, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		e := errors.Newf(errors.TypeUpstream, "upstream rate limited (429)")
		if secs, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && secs > 0 {
			return nil, true, &retryAfterError{err: e, delay: time.Duration(secs) * time.Second}
		}
		return nil, true, &retryAfterError{err: e, delay: jitter(c.opts.BackoffBase)}

	case resp.StatusCode >= 500:
		return nil, true, errors.Newf(errors.TypeUpstream, "upstream returned status %d", resp.StatusCode)

	default:
		return nil, false, errors.Newf(errors.TypeUpstream, "upstream returned status %d", resp.StatusCode)
	}
}

// lastDelay picks the wait before the given retry attempt: a server-supplied
// Retry-After wins, otherwise exponential backoff with jitter.
func lastDelay(lastErr error, attempt int, base time.Duration) time.Duration {
	if ra, ok := lastErr.(*retryAfterError); ok {
		return ra.delay
	}
	backoff := base << (attempt - 1)
	return backoff + jitter(base)
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}
