//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package notify

import (
	"time"
)

// Notifier is a channel-backed fallback without a pollable descriptor.
type Notifier struct {
	ch chan struct{}
}

// New creates a Notifier.
func New() (*Notifier, error) {
	return &Notifier{ch: make(chan struct{}, 1)}, nil
}

// FD returns -1; there is no descriptor to register with a reactor.
func (n *Notifier) FD() int {
	return -1
}

// Signal wakes a pending Wait.
func (n *Notifier) Signal() error {
	select {
	case n.ch <- struct{}{}:
	default:
	}

	return nil
}

// Drain clears a pending signal.
func (n *Notifier) Drain() error {
	select {
	case <-n.ch:
	default:
	}

	return nil
}

// Wait blocks until signalled or timeout passes. Extra descriptors cannot
// be polled here.
func (n *Notifier) Wait(extra []PollFD, timeout time.Duration) (int, error) {
	if len(extra) > 0 {
		return 0, ErrNotSupported
	}

	if timeout < 0 {
		<-n.ch
		n.Signal()
		return 1, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.ch:
		n.Signal()
		return 1, nil
	case <-timer.C:
		return 0, nil
	}
}

// Close is a no-op.
func (n *Notifier) Close() error {
	return nil
}
