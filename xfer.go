// Package xfer exposes one-call helpers over package transfer for the
// common cases: fetching a URL into memory, downloading it to a file, and
// running a batch of handles to completion.
package xfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adamwoolhether/xfer/result"
	"github.com/adamwoolhether/xfer/transfer"
	"github.com/adamwoolhether/xfer/transfer/download"
)

// ErrTransferFailed is wrapped by an OutcomeError.
var ErrTransferFailed = errors.New("transfer failed")

// OutcomeError reports a transfer that finished with an outcome other
// than result.OK.
type OutcomeError struct {
	Outcome result.Outcome
	Status  int
	Detail  string
}

func (e *OutcomeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", ErrTransferFailed, e.Outcome)
	}

	return fmt.Sprintf("%v: %s: %s", ErrTransferFailed, e.Outcome, e.Detail)
}

func (e *OutcomeError) Unwrap() error {
	return ErrTransferFailed
}

// Fetch performs a single transfer of rawURL and returns the body. A
// non-OK outcome is returned as an *OutcomeError.
func Fetch(ctx context.Context, rawURL string, opts ...transfer.Option) ([]byte, error) {
	var body bytes.Buffer

	opts = append([]transfer.Option{transfer.WithURL(rawURL)}, opts...)
	opts = append(opts, transfer.WithWriteBack(transfer.BufferWriteBack(&body)))

	h, err := transfer.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring transfer: %w", err)
	}
	defer h.Close()

	out, err := h.Perform(ctx)
	if err := outcomeErr(h, out, err); err != nil {
		return nil, err
	}

	return body.Bytes(), nil
}

// Download streams rawURL to destPath through a download.Sink, renaming
// the file into place only when the transfer and all sink checks succeed.
func Download(ctx context.Context, rawURL, destPath string, dlOpts []download.Option, opts ...transfer.Option) error {
	h, err := transfer.New(append([]transfer.Option{transfer.WithURL(rawURL)}, opts...)...)
	if err != nil {
		return fmt.Errorf("configuring transfer: %w", err)
	}
	defer h.Close()

	sink, err := download.New(destPath, slog.Default(), dlOpts...)
	if err != nil {
		return err
	}
	if err := h.SetWriteBack(sink.Write); err != nil {
		return errors.Join(err, sink.Abort())
	}

	out, err := h.Perform(ctx)
	if sink.Err() != nil {
		return errors.Join(sink.Err(), sink.Abort())
	}

	return sink.Finish(out, outcomeErr(h, out, err))
}

// Result is the completion of one handle run by RunAll.
type Result struct {
	Outcome result.Outcome
	Err     error
}

// RunAll drives handles through a PollScheduler until all complete or ctx
// ends. Handles still running when ctx ends are removed and reported with
// ctx's error.
func RunAll(ctx context.Context, handles []*transfer.Handle, opts ...transfer.SchedulerOption) (map[*transfer.Handle]Result, error) {
	results := make(map[*transfer.Handle]Result, len(handles))
	done := func(_ transfer.Scheduler, h *transfer.Handle, out result.Outcome, err error) {
		results[h] = Result{Outcome: out, Err: err}
	}

	s, err := transfer.NewPollScheduler(done, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for _, h := range handles {
		if _, err := s.Add(h); err != nil {
			cancelAll(s, handles, results, err)
			return results, err
		}
	}

	wake := context.AfterFunc(ctx, func() { s.Wakeup() })
	defer wake()

	for {
		running, err := s.Perform()
		if err != nil {
			cancelAll(s, handles, results, err)
			return results, err
		}
		if running == 0 {
			return results, nil
		}

		if err := ctx.Err(); err != nil {
			cancelAll(s, handles, results, err)
			return results, err
		}

		if _, err := s.Wait(nil, time.Second); err != nil {
			cancelAll(s, handles, results, err)
			return results, err
		}
	}
}

func cancelAll(s *transfer.PollScheduler, handles []*transfer.Handle, results map[*transfer.Handle]Result, cause error) {
	for _, h := range handles {
		if _, ok := results[h]; ok {
			continue
		}
		if err := s.Remove(h); err != nil {
			continue
		}
		results[h] = Result{Err: cause}
	}
}

func outcomeErr(h *transfer.Handle, out result.Outcome, err error) error {
	if err != nil {
		return err
	}
	if !out.Succeeded() {
		return &OutcomeError{Outcome: out, Status: h.ResponseCode(), Detail: h.ErrorDetail()}
	}

	return nil
}

// URLOption adjusts a target built by URL.
type URLOption func(*target)

type target struct {
	port  int
	query url.Values
}

// WithQuery adds a query parameter. Repeating a key keeps every value.
func WithQuery(key, value string) URLOption {
	return func(t *target) {
		t.query.Add(key, value)
	}
}

// WithPort sets an explicit port; 0 keeps the scheme default.
func WithPort(port int) URLOption {
	return func(t *target) {
		t.port = port
	}
}

// URL builds a transfer target from its parts. An empty scheme means
// https. IPv6 hosts may be given with or without brackets.
func URL(scheme, host, path string, opts ...URLOption) string {
	if scheme == "" {
		scheme = "https"
	}

	t := target{query: url.Values{}}
	for _, opt := range opts {
		opt(&t)
	}

	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	switch {
	case t.port > 0:
		host = net.JoinHostPort(host, strconv.Itoa(t.port))
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     path,
		RawQuery: t.query.Encode(),
	}

	return u.String()
}
