package transfer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/xfer/internal/engine"
	"github.com/adamwoolhether/xfer/internal/notify"
	"github.com/adamwoolhether/xfer/result"
	"github.com/adamwoolhether/xfer/transfer/throttle"
)

// Scheduler is the part of a scheduler's API that completion callbacks
// may use, typically to re-add a finished handle.
type Scheduler interface {
	Add(h *Handle) (bool, error)
	Remove(h *Handle) error
	Running() int
	Len() int
}

// CompletionFunc is invoked once per finished transfer, on the goroutine
// driving the scheduler. The handle has already been removed, so it may be
// reconfigured and added again. Exactly one of out and err is meaningful:
// err is nil when out is not result.None.
type CompletionFunc func(s Scheduler, h *Handle, out result.Outcome, err error)

type eventKind uint8

const (
	evWrite eventKind = iota + 1
	evRead
	evDone
)

// event is queued by a transfer worker for the driving goroutine.
type event struct {
	kind  eventKind
	h     *Handle
	gen   uint64
	buf   []byte
	reply chan int
	code  result.Code
}

// record is the scheduler's per-member state.
type record struct {
	gen      uint64
	started  bool
	deadline time.Time
	cancel   context.CancelFunc
	span     trace.Span
	easy     *engine.Easy
}

// core is the machinery shared by both scheduler modes. Everything but
// the event queue belongs to the driving goroutine.
type core struct {
	self     Scheduler
	done     CompletionFunc
	logger   *slog.Logger
	tracer   trace.Tracer
	pool     *engine.Pool
	wrap     func(http.RoundTripper) http.RoundTripper
	maxTotal int
	notifier *notify.Notifier

	members     map[*Handle]*record
	pending     []*Handle
	running     int
	gen         uint64
	dispatching bool
	closed      bool

	qmu     sync.Mutex
	queue   *queue.Queue
	qclosed bool
}

func newCore(done CompletionFunc, optFns []SchedulerOption) (*core, error) {
	opts := schedOptions{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, err
		}
	}

	n, err := notify.New()
	if err != nil {
		return nil, result.NewError(result.KindAllocation, "creating wakeup notifier: %v", err)
	}

	c := &core{
		done:   done,
		logger: opts.logger,
		tracer: opts.tracer,
		pool: engine.NewPool(engine.PoolConfig{
			Multiplex:       opts.multiplex,
			MaxConnsPerHost: opts.maxConnsPerHost,
			TLSConfig:       opts.tlsConfig,
		}),
		maxTotal: opts.maxTotal,
		notifier: n,
		members:  make(map[*Handle]*record),
		queue:    queue.New(),
	}

	if opts.throttle != nil {
		t, err := throttle.New(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return c.logger })
		if err != nil {
			n.Close()
			return nil, invalidArgument("configuring throttle: %v", err)
		}
		c.wrap = t.Wrap
	}

	return c, nil
}

func (c *core) add(h *Handle) (bool, error) {
	switch {
	case c.closed:
		return false, invalidArgument("scheduler is closed")
	case h == nil:
		return false, invalidArgument("handle must not be nil")
	case h.closed:
		return false, invalidArgument("handle %s is closed", h.id)
	case h.owner == c:
		return false, nil
	case h.owner != nil:
		return false, invalidArgument("handle %s belongs to another scheduler", h.id)
	}

	if !h.busy.CompareAndSwap(false, true) {
		return false, invalidArgument("handle %s is in flight", h.id)
	}

	h.owner = c
	c.members[h] = &record{}
	c.pending = append(c.pending, h)

	c.logger.Debug("transfer added", "handle", h.id, "url", h.easy.URL)

	return true, nil
}

func (c *core) remove(h *Handle) error {
	if h == nil {
		return invalidArgument("handle must not be nil")
	}

	rec, ok := c.members[h]
	if !ok {
		return invalidArgument("handle %s is not a member of this scheduler", h.id)
	}
	delete(c.members, h)

	if rec.started {
		rec.cancel()
		c.running--
		rec.span.SetAttributes(attribute.Bool("removed", true))
		rec.span.End()
	} else {
		for i, p := range c.pending {
			if p == h {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
	}

	h.owner = nil
	h.busy.Store(false)

	c.logger.Debug("transfer removed", "handle", h.id, "started", rec.started)

	return nil
}

// inFlight counts running and pending members.
func (c *core) inFlight() int {
	return c.running + len(c.pending)
}

func (c *core) canStart() bool {
	return len(c.pending) > 0 && (c.maxTotal == 0 || c.running < c.maxTotal)
}

func (c *core) startPending() error {
	for c.canStart() {
		h := c.pending[0]
		c.pending = c.pending[1:]

		rec, ok := c.members[h]
		if !ok {
			return engineBug("pending handle %s has no record", h.id)
		}
		c.start(h, rec)
	}

	return nil
}

func (c *core) start(h *Handle, rec *record) {
	c.gen++
	gen := c.gen

	now := time.Now()
	rec.gen = gen
	rec.started = true
	if h.easy.Timeout > 0 {
		rec.deadline = now.Add(h.easy.Timeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := c.tracer.Start(ctx, "xfer.transfer",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("url", h.easy.URL),
			attribute.String("handle.id", h.id.String()),
		),
	)
	rec.cancel = cancel
	rec.span = span
	rec.easy = h.easy.Clone()
	c.running++

	easy := rec.easy
	env := h.env(c)
	cb := engine.IO{ReadLen: h.readLen}
	if h.write != nil {
		cb.Write = c.bridge(ctx, h, gen, evWrite)
	}
	if h.read != nil {
		cb.Read = c.bridge(ctx, h, gen, evRead)
	}

	c.logger.Debug("transfer started", "handle", h.id, "gen", gen)

	go func() {
		code := easy.Perform(ctx, env, cb)
		c.post(event{kind: evDone, h: h, gen: gen, code: code})
	}()
}

// bridge returns an engine data callback that forwards each call to the
// driving goroutine and blocks for its answer.
func (c *core) bridge(ctx context.Context, h *Handle, gen uint64, kind eventKind) func([]byte) int {
	abort := 0
	if kind == evRead {
		abort = ReadAbort
	}

	return func(p []byte) int {
		reply := make(chan int, 1)
		if !c.post(event{kind: kind, h: h, gen: gen, buf: p, reply: reply}) {
			return abort
		}

		select {
		case n := <-reply:
			return n
		case <-ctx.Done():
			return abort
		}
	}
}

// post queues ev and signals the notifier. It reports false once the
// scheduler is closed.
func (c *core) post(ev event) bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()

	if c.qclosed {
		return false
	}
	c.queue.Add(ev)

	if err := c.notifier.Signal(); err != nil {
		c.logger.Error("signalling scheduler", "error", err)
	}

	return true
}

func (c *core) queued() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()

	return c.queue.Length()
}

// dispatch serves the events queued so far. Events from removed or
// restarted transfers are answered with an abort and dropped.
func (c *core) dispatch() error {
	if err := c.notifier.Drain(); err != nil {
		return genericError("draining wakeup notifier: %v", err)
	}

	for range c.queued() {
		c.qmu.Lock()
		ev := c.queue.Remove().(event)
		c.qmu.Unlock()

		rec, ok := c.members[ev.h]
		if !ok || !rec.started || rec.gen != ev.gen {
			if ev.reply != nil {
				ev.reply <- abortValue(ev.kind)
			}
			continue
		}

		switch ev.kind {
		case evWrite:
			ev.reply <- c.callback(ev.h, func() int { return ev.h.write(ev.buf) })
		case evRead:
			ev.reply <- c.callback(ev.h, func() int { return ev.h.read(ev.buf) })
		case evDone:
			c.complete(ev.h, rec, ev.code)
		default:
			return engineBug("unknown event kind %d", ev.kind)
		}
	}

	return nil
}

func abortValue(kind eventKind) int {
	if kind == evRead {
		return ReadAbort
	}

	return 0
}

// complete removes h from the set, then reports it.
func (c *core) complete(h *Handle, rec *record, code result.Code) {
	delete(c.members, h)
	c.running--
	rec.cancel()

	h.owner = nil
	h.busy.Store(false)
	h.easy.Info, h.easy.ErrBuf = rec.easy.Info, rec.easy.ErrBuf

	out, err := result.Map(code, rec.easy.ErrBuf)

	rec.span.SetAttributes(attribute.String("outcome", out.String()))
	if err != nil {
		rec.span.RecordError(err)
		rec.span.SetStatus(codes.Error, err.Error())
	}
	rec.span.End()

	c.logger.Debug("transfer complete", "handle", h.id, "outcome", out, "error", err, "status", h.ResponseCode(), "elapsed", h.TotalTime())

	if c.done != nil {
		c.callback(h, func() int {
			c.done(c.self, h, out, err)
			return 0
		})
	}
}

// callback runs user code for h with the re-entrancy guard raised.
func (c *core) callback(h *Handle, fn func() int) int {
	prev := c.dispatching
	c.dispatching = true
	defer func() { c.dispatching = prev }()

	if h != nil {
		return h.guard(fn)
	}

	return fn()
}

// earliestDeadline returns the soonest transfer deadline, if any.
func (c *core) earliestDeadline() (time.Time, bool) {
	var (
		earliest time.Time
		ok       bool
	)
	for _, rec := range c.members {
		if !rec.started || rec.deadline.IsZero() {
			continue
		}
		if !ok || rec.deadline.Before(earliest) {
			earliest, ok = rec.deadline, true
		}
	}

	return earliest, ok
}

func (c *core) inject(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

func (c *core) close() error {
	if c.dispatching {
		return reentrant("Close")
	}
	if c.closed {
		return nil
	}
	if n := len(c.members); n > 0 {
		return invalidArgument("%d transfers still in flight", n)
	}

	c.closed = true

	c.qmu.Lock()
	c.qclosed = true
	c.qmu.Unlock()

	c.pool.CloseIdleConnections()

	if err := c.notifier.Close(); err != nil {
		return genericError("closing wakeup notifier: %v", err)
	}

	c.logger.Info("scheduler closed")

	return nil
}
