// Package notify provides the wakeup descriptor a scheduler waits on. Engine
// workers signal it whenever they queue an event; the driving goroutine
// drains it before reading the queue.
package notify

import (
	"errors"
	"time"
)

// ErrNotSupported is returned on platforms without descriptor polling.
var ErrNotSupported = errors.New("notify: descriptor polling not supported on this platform")

// Poll event bits, matching poll(2).
const (
	In  int16 = 0x1
	Pri int16 = 0x2
	Out int16 = 0x4
	Err int16 = 0x8
	Hup int16 = 0x10
)

// PollFD is one extra descriptor for Wait.
type PollFD struct {
	FD      int
	Events  int16
	Revents int16
}

// millis converts d to a poll(2) timeout, rounding up so that a
// sub-millisecond deadline does not spin. Negative means infinite.
func millis(d time.Duration) int {
	if d < 0 {
		return -1
	}

	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}

	return int(ms)
}
