package download

import (
	"errors"
	"fmt"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrDestinationExists     = errors.New("destination exists")
	ErrTooLarge              = errors.New("download exceeds size limit")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrFinished              = errors.New("sink already finished")
)

type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
