package transfer

import (
	"time"

	"github.com/adamwoolhether/xfer/result"
)

// Socket identifies a descriptor reported through a SocketFunc.
type Socket int

// SocketTimeout passed to SocketAction reports timer expiry, and is also
// the bootstrap call that starts the first transfers.
const SocketTimeout Socket = -1

// Interest is the readiness a SocketFunc asks the caller to watch for.
type Interest uint8

const (
	PollIn     Interest = 1
	PollOut    Interest = 2
	PollInOut  Interest = 3
	PollRemove Interest = 4
)

func (i Interest) String() string {
	switch i {
	case PollIn:
		return "in"
	case PollOut:
		return "out"
	case PollInOut:
		return "inout"
	case PollRemove:
		return "remove"
	default:
		return "interest(?)"
	}
}

// EventMask is the readiness the caller observed on a socket.
type EventMask uint8

const (
	CSelectIn  EventMask = 1
	CSelectOut EventMask = 2
	CSelectErr EventMask = 4
)

// TimerCancel passed to a TimerFunc removes the pending timer.
const TimerCancel time.Duration = -1

// SocketFunc registers (what = PollIn/PollOut/PollInOut) or unregisters
// (PollRemove) interest in s with the caller's event loop. slot is the
// value last given to Assign for s.
type SocketFunc func(s Socket, what Interest, slot any) error

// TimerFunc arms a single timer that must call
// SocketAction(SocketTimeout, 0) after timeout; TimerCancel disarms it.
// A later call replaces the earlier timer.
type TimerFunc func(timeout time.Duration) error

// SocketScheduler runs many transfers driven by an external event loop.
// The scheduler reports the descriptors and the timeout it needs through
// the SocketFunc and TimerFunc given at construction; the loop calls
// [SocketScheduler.SocketAction] when a descriptor is ready or the timer
// fires. Nothing starts until the first SocketAction call, normally the
// one made when the timer armed by Add fires.
//
// All callbacks run on the goroutine calling SocketAction, Add or Remove.
type SocketScheduler struct {
	c     *core
	sock  SocketFunc
	timer TimerFunc

	wake       Socket
	slots      map[Socket]any
	registered bool
	armed      timerState
}

// timerState is the timer last requested from the TimerFunc.
type timerState struct {
	armed bool
	at    time.Time // zero means immediately
}

// NewSocketScheduler constructs an event-mode scheduler. sock and timer
// are required; done may be nil.
func NewSocketScheduler(done CompletionFunc, sock SocketFunc, timer TimerFunc, opts ...SchedulerOption) (*SocketScheduler, error) {
	if sock == nil || timer == nil {
		return nil, invalidArgument("socket and timer callbacks are required")
	}

	c, err := newCore(done, opts)
	if err != nil {
		return nil, err
	}

	fd := c.notifier.FD()
	if fd < 0 {
		c.close()
		return nil, result.NewError(result.KindNotBuiltIn, "event mode needs a pollable wakeup descriptor")
	}

	s := &SocketScheduler{
		c:     c,
		sock:  sock,
		timer: timer,
		wake:  Socket(fd),
		slots: make(map[Socket]any),
	}
	c.self = s

	return s, nil
}

// Add queues h and arms the timer so the caller's loop kicks it off.
func (s *SocketScheduler) Add(h *Handle) (bool, error) {
	added, err := s.c.add(h)
	if err != nil || !added {
		return added, err
	}

	return true, s.sync()
}

// Remove stops h without reporting a completion.
func (s *SocketScheduler) Remove(h *Handle) error {
	if err := s.c.remove(h); err != nil {
		return err
	}

	return s.sync()
}

// Assign stores slot for s; it is passed back on later SocketFunc calls
// for s.
func (s *SocketScheduler) Assign(sock Socket, slot any) error {
	if sock != s.wake {
		return invalidArgument("unknown socket %d", sock)
	}
	s.slots[sock] = slot

	return nil
}

// SocketAction reacts to readiness on sock, or to timer expiry when sock
// is SocketTimeout. It serves queued callbacks and completions and returns
// the number of transfers still in flight.
func (s *SocketScheduler) SocketAction(sock Socket, mask EventMask) (int, error) {
	c := s.c
	if c.closed {
		return 0, invalidArgument("scheduler is closed")
	}
	if c.dispatching {
		return 0, reentrant("SocketAction")
	}

	switch sock {
	case SocketTimeout:
		if err := c.startPending(); err != nil {
			return 0, err
		}
	case s.wake:
		if mask&CSelectErr != 0 {
			c.logger.Error("wakeup descriptor reported an error", "socket", sock)
		}
	default:
		return 0, invalidArgument("unknown socket %d", sock)
	}

	if err := c.dispatch(); err != nil {
		return 0, err
	}
	if err := c.startPending(); err != nil {
		return 0, err
	}
	if err := s.sync(); err != nil {
		return 0, err
	}

	return c.inFlight(), nil
}

// Running reports transfers in flight, pending ones included.
func (s *SocketScheduler) Running() int {
	return s.c.inFlight()
}

// Len reports the member count.
func (s *SocketScheduler) Len() int {
	return len(s.c.members)
}

// Close releases the scheduler. It fails while transfers are in flight.
func (s *SocketScheduler) Close() error {
	if s.c.dispatching {
		return reentrant("Close")
	}
	if !s.c.closed && s.armed.armed && len(s.c.members) == 0 {
		s.armed = timerState{}
		if err := s.callTimer(TimerCancel); err != nil {
			return err
		}
	}

	return s.c.close()
}

// sync tells the caller's loop about changes in the wakeup descriptor's
// registration and in the earliest timeout.
func (s *SocketScheduler) sync() error {
	c := s.c

	if want := c.running > 0; want != s.registered {
		what := PollIn
		if !want {
			what = PollRemove
		}
		s.registered = want

		var err error
		c.callback(nil, func() int {
			err = s.sock(s.wake, what, s.slots[s.wake])
			return 0
		})
		if err != nil {
			return genericError("socket callback: %v", err)
		}
		if !want {
			delete(s.slots, s.wake)
		}
	}

	var next timerState
	switch dl, ok := c.earliestDeadline(); {
	case c.canStart():
		next = timerState{armed: true}
	case ok:
		next = timerState{armed: true, at: dl}
	}

	if next == s.armed {
		return nil
	}
	s.armed = next

	d := TimerCancel
	if next.armed {
		d = 0
		if !next.at.IsZero() {
			d = max(time.Until(next.at), minWait)
		}
	}

	return s.callTimer(d)
}

func (s *SocketScheduler) callTimer(d time.Duration) error {
	var err error
	s.c.callback(nil, func() int {
		err = s.timer(d)
		return 0
	})
	if err != nil {
		return genericError("timer callback: %v", err)
	}

	return nil
}
