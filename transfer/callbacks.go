package transfer

import (
	"bytes"
	"errors"
	"io"

	"github.com/adamwoolhether/xfer/internal/engine"
)

// WriteFunc receives response body bytes. Returning fewer than len(p)
// aborts the transfer, which then completes as result.WriteBackAborted.
// p is only valid for the duration of the call.
type WriteFunc func(p []byte) int

// ReadFunc fills p with upload bytes and returns the count. Returning 0
// ends the upload; returning ReadAbort aborts the transfer, which then
// completes as result.CallbackAborted.
type ReadFunc func(p []byte) int

// ReadAbort is the ReadFunc return value that aborts the transfer.
const ReadAbort = engine.ReadAbort

// SizeUnknown declares an upload whose length is not known in advance.
const SizeUnknown = engine.SizeUnknown

// WriteTo adapts w to a WriteFunc. A write error aborts the transfer.
func WriteTo(w io.Writer) WriteFunc {
	return func(p []byte) int {
		n, err := w.Write(p)
		if err != nil && n == len(p) {
			return 0
		}

		return n
	}
}

// BufferWriteBack collects the whole body into b.
func BufferWriteBack(b *bytes.Buffer) WriteFunc {
	return func(p []byte) int {
		n, _ := b.Write(p)
		return n
	}
}

// ReadFrom adapts r to a ReadFunc. io.EOF ends the upload; any other
// error aborts the transfer.
func ReadFrom(r io.Reader) ReadFunc {
	return func(p []byte) int {
		for {
			n, err := r.Read(p)
			switch {
			case n > 0:
				return n
			case errors.Is(err, io.EOF):
				return 0
			case err != nil:
				return ReadAbort
			}
		}
	}
}
