package main

import (
	"context"
	"errors"
	"time"

	"github.com/adamwoolhether/xfer/transfer"
)

// runPoll drives the batch with a PollScheduler until every transfer
// completes or ctx ends.
func runPoll(ctx context.Context, b *batch, opts []transfer.SchedulerOption) error {
	s, err := transfer.NewPollScheduler(b.complete, opts...)
	if err != nil {
		return err
	}

	for _, h := range b.pending() {
		if _, err := s.Add(h); err != nil {
			return errors.Join(err, abortPoll(s, b, err))
		}
	}

	stop := context.AfterFunc(ctx, func() {
		if err := s.Wakeup(); err != nil {
			b.logger.Debug("waking scheduler", "error", err)
		}
	})
	defer stop()

	for {
		running, err := s.Perform()
		if err != nil {
			return errors.Join(err, abortPoll(s, b, err))
		}
		if running == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return abortPoll(s, b, err)
		}
		if _, err := s.Wait(nil, time.Second); err != nil {
			return errors.Join(err, abortPoll(s, b, err))
		}
	}

	return s.Close()
}

// abortPoll removes unfinished transfers, records cause for them and
// closes s.
func abortPoll(s *transfer.PollScheduler, b *batch, cause error) error {
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
