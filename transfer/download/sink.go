package download

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adamwoolhether/xfer/result"
)

// Sink is a write-back target streaming a transfer's body to a temp file
// next to the destination. Commit renames the temp file into place;
// Abort removes it. Sink is driven from a single goroutine, as all
// write-back callbacks are.
type Sink struct {
	dest    string
	file    *os.File
	writer  io.Writer
	meter   *meter
	opts    options
	logger  *slog.Logger
	written int64
	err     error
	done    bool
}

// New creates the temp file for destPath. With WithSkipExisting and an
// existing destPath it returns an error wrapping ErrDestinationExists.
func New(destPath string, logger *slog.Logger, optFns ...Option) (*Sink, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}

	opts := options{expectedSize: -1}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil, &Error{Err: ErrDestinationExists, Detail: destPath}
		}
	}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".xfer-dl-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	s := &Sink{
		dest:   destPath,
		file:   file,
		opts:   opts,
		logger: logger,
	}

	s.writer = file
	if opts.checksum != nil {
		s.writer = io.MultiWriter(s.writer, opts.checksum)
	}
	if opts.progress {
		s.meter = &meter{logger: logger, total: opts.expectedSize, start: time.Now()}
	}

	return s, nil
}

// Write has the shape of a transfer write-back callback. A write failure
// returns a short count, which aborts the transfer; the cause is kept
// for Err.
func (s *Sink) Write(p []byte) int {
	if s.err != nil || s.done {
		return 0
	}

	n, err := s.writer.Write(p)
	s.written += int64(n)
	s.meter.update(s.written)
	if err != nil {
		s.err = fmt.Errorf("writing temp file: %w", err)
		return n
	}
	if s.opts.maxSize > 0 && s.written > s.opts.maxSize {
		s.err = &Error{
			Err:    ErrTooLarge,
			Detail: fmt.Sprintf("limit %d bytes, got %d", s.opts.maxSize, s.written),
		}
		return 0
	}

	return n
}

// Err reports the write failure that aborted the transfer, if any.
func (s *Sink) Err() error {
	return s.err
}

// Written reports the bytes accepted so far.
func (s *Sink) Written() int64 {
	return s.written
}

// Path reports the destination path.
func (s *Sink) Path() string {
	return s.dest
}

// Finish commits the download when the transfer succeeded and aborts it
// otherwise.
func (s *Sink) Finish(out result.Outcome, transferErr error) error {
	if transferErr != nil {
		return errors.Join(transferErr, s.Abort())
	}
	if !out.Succeeded() {
		return errors.Join(&Error{Err: ErrTransferFailed, Detail: out.String()}, s.Abort())
	}

	return s.Commit()
}

// Commit verifies the size and checksum, then renames the temp file to
// the destination. The temp file is removed on any failure.
func (s *Sink) Commit() error {
	if s.done {
		return ErrFinished
	}

	var successful bool
	defer func() {
		if !successful {
			if err := s.Abort(); err != nil {
				s.logger.Error("aborting download", "error", err)
			}
		}
	}()

	if s.err != nil {
		return s.err
	}

	if s.opts.expectedSize >= 0 && s.written != s.opts.expectedSize {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", s.opts.expectedSize, s.written),
		}
	}

	if err := s.opts.checksum.verify(); err != nil {
		return err
	}

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(s.file.Name(), s.dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	s.done = true
	successful = true
	s.meter.finish(s.written)

	return nil
}

// Abort discards the temp file. It is a no-op after Commit or Abort.
func (s *Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true

	var errs []error
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing temp file: %w", err))
	}
	if err := os.Remove(s.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("removing temp file: %w", err))
	}

	return errors.Join(errs...)
}
