package transfer

import (
	"time"

	"github.com/adamwoolhether/xfer/internal/notify"
)

// WaitFD is an extra descriptor for [PollScheduler.Wait], mirroring
// poll(2): Events is the interest, Revents is filled in on return.
type WaitFD = notify.PollFD

// Poll bits for WaitFD.
const (
	WaitIn  = notify.In
	WaitPri = notify.Pri
	WaitOut = notify.Out
	WaitErr = notify.Err
	WaitHup = notify.Hup
)

// minWait bounds how soon Wait returns for an expired deadline, giving
// the transfer's own timer room to fire.
const minWait = time.Millisecond

// PollScheduler runs many transfers driven by a caller loop of
// [PollScheduler.Perform] and [PollScheduler.Wait]:
//
//	for {
//		running, err := s.Perform()
//		if err != nil || running == 0 {
//			break
//		}
//		if _, err := s.Wait(nil, time.Second); err != nil {
//			break
//		}
//	}
//
// All callbacks run inside Perform on the calling goroutine. A
// PollScheduler must be driven by one goroutine at a time; only
// [PollScheduler.Wakeup] is safe from others.
type PollScheduler struct {
	c *core
}

// NewPollScheduler constructs a poll-mode scheduler. done may be nil.
func NewPollScheduler(done CompletionFunc, opts ...SchedulerOption) (*PollScheduler, error) {
	c, err := newCore(done, opts)
	if err != nil {
		return nil, err
	}

	s := &PollScheduler{c: c}
	c.self = s

	return s, nil
}

// Add queues h for the next Perform. It reports false without error when h
// is already a member. Adding from inside a completion callback is
// allowed.
func (s *PollScheduler) Add(h *Handle) (bool, error) {
	return s.c.add(h)
}

// Remove stops h without reporting a completion. Removing a handle that is
// not a member is an InvalidArgument error.
func (s *PollScheduler) Remove(h *Handle) error {
	return s.c.remove(h)
}

// Perform starts pending transfers and serves queued callbacks and
// completions. It returns the number of transfers still in flight.
func (s *PollScheduler) Perform() (int, error) {
	c := s.c
	if c.closed {
		return 0, invalidArgument("scheduler is closed")
	}
	if c.dispatching {
		return 0, reentrant("Perform")
	}

	if err := c.startPending(); err != nil {
		return 0, err
	}
	if err := c.dispatch(); err != nil {
		return 0, err
	}
	if err := c.startPending(); err != nil {
		return 0, err
	}

	return c.inFlight(), nil
}

// Wait blocks until there is work for Perform, one of extra is ready, the
// earliest transfer deadline passes, or timeout elapses. A timeout of 0
// waits indefinitely. It returns -1 at once when nothing is in flight and
// 0 at once when Perform already has work. Otherwise it returns the number
// of ready descriptors, counting the scheduler's own.
func (s *PollScheduler) Wait(extra []WaitFD, timeout time.Duration) (int, error) {
	c := s.c
	switch {
	case c.closed:
		return 0, invalidArgument("scheduler is closed")
	case c.dispatching:
		return 0, reentrant("Wait")
	case timeout < 0:
		return 0, invalidArgument("timeout must not be negative")
	}

	if c.inFlight() == 0 {
		return -1, nil
	}
	if c.canStart() || c.queued() > 0 {
		return 0, nil
	}

	d := time.Duration(-1)
	if timeout > 0 {
		d = timeout
	}
	if dl, ok := c.earliestDeadline(); ok {
		until := max(time.Until(dl), minWait)
		if d < 0 || until < d {
			d = until
		}
	}

	n, err := c.notifier.Wait(extra, d)
	if err != nil {
		return 0, genericError("waiting: %v", err)
	}
	if err := c.notifier.Drain(); err != nil {
		return 0, genericError("draining wakeup notifier: %v", err)
	}

	return n, nil
}

// Wakeup interrupts a blocked Wait. It is safe from any goroutine.
func (s *PollScheduler) Wakeup() error {
	s.c.qmu.Lock()
	defer s.c.qmu.Unlock()

	if s.c.qclosed {
		return invalidArgument("scheduler is closed")
	}
	if err := s.c.notifier.Signal(); err != nil {
		return genericError("waking scheduler: %v", err)
	}

	return nil
}

// Running reports transfers in flight, pending ones included.
func (s *PollScheduler) Running() int {
	return s.c.inFlight()
}

// Len reports the member count.
func (s *PollScheduler) Len() int {
	return len(s.c.members)
}

// Close releases the scheduler. It fails while transfers are in flight.
func (s *PollScheduler) Close() error {
	return s.c.close()
}
