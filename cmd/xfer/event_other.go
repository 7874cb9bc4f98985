//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package main

import (
	"context"
	"errors"

	"github.com/adamwoolhether/xfer/transfer"
)

func runEvent(context.Context, *batch, []transfer.SchedulerOption) error {
	return errors.New("event mode needs poll(2); use -mode poll")
}
