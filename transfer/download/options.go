package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for a Sink.
// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
//
// WithExpectedSize makes Commit fail unless exactly n bytes arrived.
//
// WithMaxSize aborts the transfer once more than n bytes arrive.
//
// WithProgress enables periodic download progress logging via the
// logger supplied to New.
//
// WithSkipExisting makes New refuse to overwrite an existing destination.
type Option func(*options) error

type options struct {
	checksum     *digest
	expectedSize int64
	maxSize      int64
	progress     bool
	skipExisting bool
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		d, err := newDigest(h, expected)
		if err != nil {
			return err
		}

		opts.checksum = d
		return nil
	}
}

func WithExpectedSize(n int64) Option {
	return func(opts *options) error {
		if n < 0 {
			return errors.New("expected size must not be negative")
		}

		opts.expectedSize = n
		return nil
	}
}

func WithMaxSize(n int64) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("max size must be positive")
		}

		opts.maxSize = n
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}
