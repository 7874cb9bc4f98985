//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package notify

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestNotifier_SignalDrain(t *testing.T) {
	n, err := New()
	if err != nil {
		t.Fatalf("creating notifier: %v", err)
	}
	defer n.Close()

	ready, err := n.Wait(nil, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ready != 0 {
		t.Errorf("exp 0 ready before signal, got %d", ready)
	}

	for range 3 {
		if err := n.Signal(); err != nil {
			t.Fatalf("signal: %v", err)
		}
	}

	ready, err = n.Wait(nil, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ready != 1 {
		t.Errorf("exp 1 ready after signal, got %d", ready)
	}

	if err := n.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	ready, err = n.Wait(nil, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ready != 0 {
		t.Errorf("exp 0 ready after drain, got %d", ready)
	}

	// A signal after a drain must wake again.
	if err := n.Signal(); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if ready, _ := n.Wait(nil, time.Second); ready != 1 {
		t.Errorf("exp 1 ready after re-signal, got %d", ready)
	}
}

func TestNotifier_ExtraFDs(t *testing.T) {
	n, err := New()
	if err != nil {
		t.Fatalf("creating notifier: %v", err)
	}
	defer n.Close()

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	if _, err := unix.Write(p[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	extra := []PollFD{{FD: p[0], Events: In}}
	ready, err := n.Wait(extra, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ready != 1 {
		t.Errorf("exp 1 ready, got %d", ready)
	}
	if extra[0].Revents&In == 0 {
		t.Errorf("exp revents to carry In, got %#x", extra[0].Revents)
	}
}

func TestMillis(t *testing.T) {
	testCases := []struct {
		in  time.Duration
		exp int
	}{
		{-1, -1},
		{0, 0},
		{time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{time.Second, 1000},
	}

	for _, tc := range testCases {
		if got := millis(tc.in); got != tc.exp {
			t.Errorf("millis(%v): exp %d, got %d", tc.in, tc.exp, got)
		}
	}
}
