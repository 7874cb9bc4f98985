package transfer

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/xfer/transfer/throttle"
)

// SchedulerOption is a functional option for [NewPollScheduler] and
// [NewSocketScheduler].
type SchedulerOption func(*schedOptions) error

type schedOptions struct {
	logger          *slog.Logger
	tracer          trace.Tracer
	multiplex       int
	maxTotal        int
	maxConnsPerHost int
	throttle        *throttle.Config
	tlsConfig       *tls.Config
}

// WithSchedulerLogger injects a custom [slog.Logger] into the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedOptions) error {
		if logger == nil {
			return invalidArgument("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records one span per transfer with tracer. The default is a
// no-op tracer.
func WithTracer(tracer trace.Tracer) SchedulerOption {
	return func(o *schedOptions) error {
		if tracer == nil {
			return invalidArgument("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithMultiplexing allows up to streams concurrent HTTP/2 streams per
// connection. 1 disables HTTP/2.
func WithMultiplexing(streams int) SchedulerOption {
	return func(o *schedOptions) error {
		if streams <= 0 {
			return invalidArgument("streams must be positive, got %d", streams)
		}
		o.multiplex = streams
		return nil
	}
}

// WithMaxTotalTransfers caps the transfers running at once; further added
// handles wait in FIFO order. 0 is unlimited.
func WithMaxTotalTransfers(n int) SchedulerOption {
	return func(o *schedOptions) error {
		if n < 0 {
			return invalidArgument("max total transfers must not be negative")
		}
		o.maxTotal = n
		return nil
	}
}

// WithMaxConnsPerHost caps connections per host; 0 is unlimited.
func WithMaxConnsPerHost(n int) SchedulerOption {
	return func(o *schedOptions) error {
		if n < 0 {
			return invalidArgument("max connections per host must not be negative")
		}
		o.maxConnsPerHost = n
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting of request starts with
// the given requests per second and burst capacity.
func WithThrottle(rps, burst int) SchedulerOption {
	return func(o *schedOptions) error {
		if rps <= 0 || burst <= 0 {
			return invalidArgument("%v", fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero))
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithTLSConfig sets the base TLS configuration, e.g. custom root CAs.
func WithTLSConfig(cfg *tls.Config) SchedulerOption {
	return func(o *schedOptions) error {
		if cfg == nil {
			return invalidArgument("tls config must not be nil")
		}
		o.tlsConfig = cfg.Clone()
		return nil
	}
}
