// Package external is the boundary between notification logic and the
// downstream push and email senders. All outbound HTTP calls go through
// RetryClient, which owns circuit breaking, retries with backoff, per-attempt
// timeouts and the invocation-wide deadline guard.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"barecourier/internal/types"
)

// RetryConfig controls one FetchWithRetry call.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds each individual attempt.
	Timeout       time.Duration
	BaseDelay     time.Duration
	MaxJitter     time.Duration
	MaxRetryDelay time.Duration
	// FunctionTimeout is the soft budget measured from the deadline start. Zero
	// disables the guard.
	FunctionTimeout time.Duration
}

// DefaultRetryConfig returns the stock retry parameters.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		Timeout:       10 * time.Second,
		BaseDelay:     time.Second,
		MaxJitter:     500 * time.Millisecond,
		MaxRetryDelay: 30 * time.Second,
	}
}

// FetchResult is the final response plus how many attempts were made.
// The caller must close Response.Body.
type FetchResult struct {
	Response *http.Response
	Attempts int
}

type fetchOptions struct {
	shouldRetryOn429 func(*http.Response) bool
	deadlineStart    time.Time
}

// FetchOption customises a single FetchWithRetry call.
type FetchOption func(*fetchOptions)

// WithShouldRetryOn429 decides whether a 429 response is retried. Without it
// every 429 is retried.
func WithShouldRetryOn429(fn func(*http.Response) bool) FetchOption {
	return func(o *fetchOptions) { o.shouldRetryOn429 = fn }
}

// WithDeadlineStart sets the instant FunctionTimeout is measured from,
// overriding any start carried by the context.
func WithDeadlineStart(t time.Time) FetchOption {
	return func(o *fetchOptions) { o.deadlineStart = t }
}

// RetryClient wraps an *http.Client and a circuit breaker.
type RetryClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
	sleepFn   func(context.Context, time.Duration) error
	jitterFn  func(max time.Duration) time.Duration
	now       func() time.Time
}

// ClientOption configures a RetryClient.
type ClientOption func(*RetryClient)

// WithSleepFunc overrides the wait between attempts. Tests pass a no-op.
func WithSleepFunc(fn func(context.Context, time.Duration) error) ClientOption {
	return func(c *RetryClient) { c.sleepFn = fn }
}

// WithJitterFunc overrides the jitter source.
func WithJitterFunc(fn func(max time.Duration) time.Duration) ClientOption {
	return func(c *RetryClient) { c.jitterFn = fn }
}

// WithNowFunc overrides the clock used by the deadline guard.
func WithNowFunc(fn func() time.Time) ClientOption {
	return func(c *RetryClient) { c.now = fn }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) ClientOption {
	return func(c *RetryClient) { c.breaker = cb }
}

// NewRetryClient creates a RetryClient. The breaker opens after more than
// five consecutive transient failures and half-opens after 30 seconds.
func NewRetryClient(httpClient *http.Client, breakerName, userAgent string, opts ...ClientOption) *RetryClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &RetryClient{
		client: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		userAgent: userAgent,
		sleepFn:   sleepContext,
		jitterFn:  uniformJitter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWithRetry sends req until it gets a definitive answer:
//   - 2xx and 3xx are returned at once,
//   - 4xx other than 429 are returned at once without retrying,
//   - 429 is retried unless the WithShouldRetryOn429 callback declines,
//   - 5xx, per-attempt timeouts and network errors are retried.
//
// The wait before retry n (0-based) honours Retry-After, capped at
// MaxRetryDelay, and otherwise is 2^n * BaseDelay, also capped; uniform jitter
// in [0, MaxJitter) is added to either. Before every attempt the deadline
// guard returns ErrCodeDeadlineExceeded once FunctionTimeout has elapsed.
//
// Once retries are exhausted a status outcome is returned as the last
// response with a nil error, while a network outcome is returned as an
// ErrCodeUpstreamUnavailable error.
func (c *RetryClient) FetchWithRetry(ctx context.Context, req *http.Request, cfg RetryConfig, opts ...FetchOption) (*FetchResult, error) {
	o := fetchOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.deadlineStart.IsZero() {
		o.deadlineStart, _ = types.GetDeadlineStart(ctx)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if traceID := types.GetRequestID(ctx); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read request body for retry support", err)
		}
	}

	result := &FetchResult{}
	var lastErr error
	maxAttempts := cfg.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.deadlineExceeded(o.deadlineStart, cfg.FunctionTimeout) {
			return result, types.NewAppError(types.ErrCodeDeadlineExceeded,
				fmt.Sprintf("function deadline of %s reached after %d attempts", cfg.FunctionTimeout, result.Attempts), lastErr)
		}

		resp, cancel, err := c.attempt(ctx, req, body, cfg.Timeout)
		result.Attempts = attempt + 1
		last := attempt == maxAttempts-1

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			cancel()
			return result, types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker is open; upstream service unavailable", err)
		}

		if resp == nil {
			cancel()
			lastErr = err
			if ctx.Err() != nil {
				return result, types.NewAppError(types.ErrCodeUpstreamUnavailable, "request cancelled", ctx.Err())
			}
			if last {
				return result, types.NewAppError(types.ErrCodeUpstreamUnavailable,
					fmt.Sprintf("upstream request failed after %d attempts", result.Attempts), err)
			}
			if err := c.sleepFn(ctx, c.backoff(attempt, nil, cfg)); err != nil {
				return result, types.NewAppError(types.ErrCodeUpstreamUnavailable, "request cancelled", err)
			}
			continue
		}

		retryable := resp.StatusCode >= 500 ||
			(resp.StatusCode == http.StatusTooManyRequests && (o.shouldRetryOn429 == nil || o.shouldRetryOn429(resp)))
		if !retryable || last {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			result.Response = resp
			return result, nil
		}

		wait := c.backoff(attempt, resp, cfg)
		drainAndClose(resp)
		cancel()
		lastErr = fmt.Errorf("upstream returned %d", resp.StatusCode)
		if err := c.sleepFn(ctx, wait); err != nil {
			return result, types.NewAppError(types.ErrCodeUpstreamUnavailable, "request cancelled", err)
		}
	}

	// Unreachable: the last iteration always returns.
	return result, lastErr
}

// attempt performs one request under its own timeout. The returned cancel
// func must be called once the response body is no longer needed.
func (c *RetryClient) attempt(ctx context.Context, req *http.Request, body []byte, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	r := req.Clone(attemptCtx)
	if body != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(r)
		if err != nil {
			return nil, err
		}
		// 5xx and 429 count against the breaker; other 4xx are the caller's fault.
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return resp, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	return resp, cancel, err
}

func (c *RetryClient) deadlineExceeded(start time.Time, budget time.Duration) bool {
	if start.IsZero() || budget <= 0 {
		return false
	}
	return c.now().Sub(start) >= budget
}

// backoff returns the wait before the retry that follows attempt.
func (c *RetryClient) backoff(attempt int, resp *http.Response, cfg RetryConfig) time.Duration {
	wait, ok := c.retryAfter(resp)
	if !ok {
		wait = time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	}
	if cfg.MaxRetryDelay > 0 && wait > cfg.MaxRetryDelay {
		wait = cfg.MaxRetryDelay
	}
	if cfg.MaxJitter > 0 {
		wait += c.jitterFn(cfg.MaxJitter)
	}
	return wait
}

// retryAfter parses a Retry-After header given as seconds or an HTTP date.
func (c *RetryClient) retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		wait := t.Sub(c.now())
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// cancelOnClose releases the attempt context when the caller closes the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
