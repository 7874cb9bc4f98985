package transfer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/adamwoolhether/xfer/internal/engine"
	"github.com/adamwoolhether/xfer/result"
)

// Handle is one configured URL transfer. A Handle is driven by one
// goroutine at a time: its creator, or the scheduler it was added to.
//
// A Handle is either standalone, where it can be configured and run with
// [Handle.Perform], or in flight inside a scheduler, where every setter
// fails with an InvalidArgument error until the scheduler reports it
// complete or it is removed.
type Handle struct {
	id      uuid.UUID
	easy    *engine.Easy
	write   WriteFunc
	read    ReadFunc
	readLen int64
	private any
	logger  *slog.Logger

	// pool is the connection cache used by standalone transfers.
	pool *engine.Pool

	share      *Share
	owner      *core
	busy       atomic.Bool
	inCallback atomic.Bool
	closed     bool
}

// New constructs a Handle and applies opts.
func New(opts ...Option) (*Handle, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, result.NewError(result.KindAllocation, "generating handle id: %v", err)
	}

	h := &Handle{
		id:      id,
		easy:    engine.New(),
		readLen: SizeUnknown,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Set applies opts to an idle handle. It never blocks and performs no I/O.
func (h *Handle) Set(opts ...Option) error {
	if err := h.configurable(); err != nil {
		return err
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return err
		}
	}

	return nil
}

// SetURL is shorthand for Set(WithURL(u)).
func (h *Handle) SetURL(u string) error { return h.Set(WithURL(u)) }

// SetTimeout is shorthand for Set(WithTimeout(d)).
func (h *Handle) SetTimeout(d time.Duration) error { return h.Set(WithTimeout(d)) }

// SetWriteBack installs the body callback; nil resets it to discard.
func (h *Handle) SetWriteBack(fn WriteFunc) error { return h.Set(WithWriteBack(fn)) }

// SetReadBack installs the upload callback; length may be SizeUnknown.
func (h *Handle) SetReadBack(fn ReadFunc, length int64) error {
	return h.Set(WithReadBack(fn, length))
}

// SetPrivate replaces the caller data.
func (h *Handle) SetPrivate(v any) error { return h.Set(WithPrivate(v)) }

// Perform runs the transfer to completion on the calling goroutine.
//
// Calling Perform on a handle from inside one of its own callbacks returns
// a Reentrant error; calling it on a handle that is in flight elsewhere
// returns an InvalidArgument error.
func (h *Handle) Perform(ctx context.Context) (result.Outcome, error) {
	return h.perform(ctx, h.easy)
}

// ConnectOnly performs a header-only request, leaving the connection in
// the handle's pool for later transfers.
func (h *Handle) ConnectOnly(ctx context.Context) (result.Outcome, error) {
	e := h.easy.Clone()
	e.NoBody = true

	out, err := h.perform(ctx, e)
	h.easy.Info, h.easy.ErrBuf = e.Info, e.ErrBuf

	return out, err
}

func (h *Handle) perform(ctx context.Context, e *engine.Easy) (result.Outcome, error) {
	if h.closed {
		return result.None, invalidArgument("handle %s is closed", h.id)
	}
	if h.inCallback.Load() {
		return result.None, reentrant("Perform")
	}
	if !h.busy.CompareAndSwap(false, true) {
		return result.None, invalidArgument("handle %s is in flight", h.id)
	}
	defer h.busy.Store(false)

	cb := engine.IO{ReadLen: h.readLen}
	if h.write != nil {
		cb.Write = func(p []byte) int { return h.guard(func() int { return h.write(p) }) }
	}
	if h.read != nil {
		cb.Read = func(p []byte) int { return h.guard(func() int { return h.read(p) }) }
	}
	code := e.Perform(ctx, h.env(nil), cb)

	out, err := result.Map(code, e.ErrBuf)
	h.logger.Debug("transfer performed", "handle", h.id, "url", e.URL, "outcome", out, "error", err)

	return out, err
}

// guard runs user code with h marked as inside one of its callbacks.
func (h *Handle) guard(fn func() int) int {
	prev := h.inCallback.Swap(true)
	defer h.inCallback.Store(prev)

	return fn()
}

// Clone returns an idle copy of the handle's configuration, callbacks and
// private data. Scheduler membership and share attachment are not copied.
func (h *Handle) Clone() (*Handle, error) {
	if h.closed {
		return nil, invalidArgument("handle %s is closed", h.id)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, result.NewError(result.KindAllocation, "generating handle id: %v", err)
	}

	return &Handle{
		id:      id,
		easy:    h.easy.Clone(),
		write:   h.write,
		read:    h.read,
		readLen: h.readLen,
		private: h.private,
		logger:  h.logger,
	}, nil
}

// Close releases the handle. Closing a handle that is in flight or still
// attached to a share is an InvalidArgument error. Close is idempotent;
// every other operation on a closed handle fails.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	if h.busy.Load() || h.owner != nil {
		return invalidArgument("handle %s is in flight", h.id)
	}
	if h.share != nil {
		return invalidArgument("handle %s is attached to a share", h.id)
	}

	if h.pool != nil {
		h.pool.CloseIdleConnections()
	}
	h.closed = true

	return nil
}

// ID identifies the handle in logs and traces.
func (h *Handle) ID() uuid.UUID { return h.id }

// Private returns the caller data set with WithPrivate.
func (h *Handle) Private() any { return h.private }

// URL returns the configured target.
func (h *Handle) URL() string { return h.easy.URL }

// ResponseCode returns the last HTTP status, or 0.
func (h *Handle) ResponseCode() int { return h.easy.Info.ResponseCode }

// BytesDownloaded returns the body bytes delivered by the last transfer.
func (h *Handle) BytesDownloaded() int64 { return h.easy.Info.Downloaded }

// BytesUploaded returns the body bytes sent by the last transfer.
func (h *Handle) BytesUploaded() int64 { return h.easy.Info.Uploaded }

// HeaderSize returns the approximate size of the last response head.
func (h *Handle) HeaderSize() int64 { return h.easy.Info.HeaderSize }

// TotalTime returns the duration of the last transfer.
func (h *Handle) TotalTime() time.Duration { return h.easy.Info.TotalTime }

// ErrorDetail returns the reason the last transfer failed, if it did.
func (h *Handle) ErrorDetail() string { return h.easy.ErrBuf }

// InFlight reports whether the handle is currently running or queued.
func (h *Handle) InFlight() bool { return h.busy.Load() }

func (h *Handle) configurable() error {
	if h.closed {
		return invalidArgument("handle %s is closed", h.id)
	}
	if h.busy.Load() {
		return invalidArgument("handle %s is in flight", h.id)
	}

	return nil
}

// env assembles the resources a transfer of h runs against. c is the
// scheduler running it, or nil for a standalone transfer.
func (h *Handle) env(c *core) engine.Env {
	env := engine.Env{Logger: h.logger}

	if h.share != nil {
		h.share.apply(&env)
	}

	if env.Transports == nil {
		if c != nil {
			env.Transports = c.pool
		} else {
			if h.pool == nil {
				h.pool = engine.NewPool(engine.PoolConfig{})
			}
			env.Transports = h.pool
		}
	}

	if c != nil {
		env.Wrap = c.wrap
		env.Inject = c.inject
	}

	return env
}
