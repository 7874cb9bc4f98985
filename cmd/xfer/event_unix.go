//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/adamwoolhether/xfer/transfer"
)

// maxPoll bounds a single poll so ctx is noticed promptly.
const maxPoll = 200 * time.Millisecond

// reactor is a poll(2) event loop serving a SocketScheduler.
type reactor struct {
	s     *transfer.SocketScheduler
	fds   map[transfer.Socket]transfer.Interest
	armed bool
	at    time.Time
}

func (r *reactor) socket(s transfer.Socket, what transfer.Interest, _ any) error {
	if what == transfer.PollRemove {
		delete(r.fds, s)
		return nil
	}
	r.fds[s] = what

	return nil
}

func (r *reactor) timer(d time.Duration) error {
	if d == transfer.TimerCancel {
		r.armed = false
		return nil
	}
	r.armed, r.at = true, time.Now().Add(d)

	return nil
}

// runEvent drives the batch with a SocketScheduler and a poll(2) loop.
func runEvent(ctx context.Context, b *batch, opts []transfer.SchedulerOption) error {
	r := &reactor{fds: make(map[transfer.Socket]transfer.Interest)}

	s, err := transfer.NewSocketScheduler(b.complete, r.socket, r.timer, opts...)
	if err != nil {
		return err
	}
	r.s = s

	if _, err := s.SocketAction(transfer.SocketTimeout, 0); err != nil {
		return errors.Join(err, s.Close())
	}
	for _, h := range b.pending() {
		if _, err := s.Add(h); err != nil {
			return errors.Join(err, abortEvent(s, b, err))
		}
	}

	for s.Running() > 0 {
		if err := ctx.Err(); err != nil {
			return abortEvent(s, b, err)
		}
		if err := r.step(); err != nil {
			return errors.Join(err, abortEvent(s, b, err))
		}
	}

	return s.Close()
}

// step polls once and reports readiness and timer expiry.
func (r *reactor) step() error {
	wait := maxPoll
	if r.armed {
		wait = min(wait, max(time.Until(r.at), 0))
	}

	pfds := make([]unix.PollFd, 0, len(r.fds))
	for s, what := range r.fds {
		var ev int16
		if what&transfer.PollIn != 0 {
			ev |= unix.POLLIN
		}
		if what&transfer.PollOut != 0 {
			ev |= unix.POLLOUT
		}
		pfds = append(pfds, unix.PollFd{Fd: int32(s), Events: ev})
	}

	if _, err := unix.Poll(pfds, int(wait.Milliseconds())); err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("poll: %w", err)
	}

	for _, p := range pfds {
		if p.Revents == 0 {
			continue
		}

		var mask transfer.EventMask
		if p.Revents&unix.POLLIN != 0 {
			mask |= transfer.CSelectIn
		}
		if p.Revents&unix.POLLOUT != 0 {
			mask |= transfer.CSelectOut
		}
		if p.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			mask |= transfer.CSelectErr
		}

		if _, err := r.s.SocketAction(transfer.Socket(p.Fd), mask); err != nil {
			return err
		}
	}

	if r.armed && !time.Now().Before(r.at) {
		r.armed = false
		if _, err := r.s.SocketAction(transfer.SocketTimeout, 0); err != nil {
			return err
		}
	}

	return nil
}

// abortEvent removes unfinished transfers, records cause for them and
// closes s.
func abortEvent(s *transfer.SocketScheduler, b *batch, cause error) error {
	var errs []error
	for _, h := range b.pending() {
		if h.InFlight() {
			errs = append(errs, s.Remove(h))
		}
	}
	b.cancel(cause)
	errs = append(errs, s.Close())

	return errors.Join(errs...)
}
