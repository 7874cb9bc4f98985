package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the throttler's
// Requests Per Second and Burst Rate
type Config struct {
	RPS   int
	Burst int
}

// Throttle is a token bucket shared by every transport it wraps, so all
// transfers of one scheduler draw from the same budget.
type Throttle struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	logFn   func() *slog.Logger
}

// New returns a Throttle admitting rps requests per second with the given
// burst. logFn lazily resolves the logger at request time; a nil-returning
// logFn disables the exhaustion logs.
func New(rps, burst int, logFn func() *slog.Logger) (*Throttle, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &Throttle{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		logFn:   logFn,
	}

	return t, nil
}

// NewRoundTripper is shorthand for New followed by Wrap.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	t, err := New(rps, burst, logFn)
	if err != nil {
		return nil, err
	}

	return t.Wrap(next), nil
}

// Wrap returns an http.RoundTripper that waits for a token before
// delegating to next.
func (t *Throttle) Wrap(next http.RoundTripper) http.RoundTripper {
	return &roundTripper{t: t, next: next}
}

// roundTripper is an http.RoundTripper, using the time/rate token
// bucket limiter to restrict outbound calls.
type roundTripper struct {
	t    *Throttle
	next http.RoundTripper
}

func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	t := rt.t
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	var waited time.Duration
	logger := t.logFn()
	if logger != nil && t.limiter.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "rate", t.rps, "burst", t.burst, "host", r.URL.Host, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.rps, "burst", t.burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return rt.next.RoundTrip(r)
}
