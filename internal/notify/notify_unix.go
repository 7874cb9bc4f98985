//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package notify

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Notifier is a non-blocking self-pipe.
type Notifier struct {
	r, w    int
	pending atomic.Bool
	closed  atomic.Bool
}

// New creates a Notifier.
func New() (*Notifier, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, fmt.Errorf("setting non-blocking: %w", err)
		}
	}

	return &Notifier{r: fds[0], w: fds[1]}, nil
}

// FD returns the readable end.
func (n *Notifier) FD() int {
	return n.r
}

// Signal makes FD readable. It is safe from any goroutine and coalesces
// repeated signals into a single byte.
func (n *Notifier) Signal() error {
	if n.closed.Load() || !n.pending.CompareAndSwap(false, true) {
		return nil
	}

	_, err := unix.Write(n.w, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("writing wakeup byte: %w", err)
	}

	return nil
}

// Drain empties the pipe. Read the event queue only after Drain returns.
func (n *Notifier) Drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(n.r, buf[:])
		if err == nil {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}

		return fmt.Errorf("draining wakeup pipe: %w", err)
	}

	n.pending.Store(false)

	return nil
}

// Wait blocks until FD or one of extra is ready, or timeout passes.
// A negative timeout blocks indefinitely. Revents of extra are filled in.
// The returned count includes FD when it is readable.
func (n *Notifier) Wait(extra []PollFD, timeout time.Duration) (int, error) {
	fds := make([]unix.PollFd, 0, len(extra)+1)
	fds = append(fds, unix.PollFd{Fd: int32(n.r), Events: unix.POLLIN})
	for _, e := range extra {
		fds = append(fds, unix.PollFd{Fd: int32(e.FD), Events: e.Events})
	}

	ready, err := unix.Poll(fds, millis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}

	for i := range extra {
		extra[i].Revents = fds[i+1].Revents
	}

	return ready, nil
}

// Close releases both ends of the pipe.
func (n *Notifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	return errors.Join(unix.Close(n.r), unix.Close(n.w))
}
