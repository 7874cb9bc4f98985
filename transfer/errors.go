package transfer

import (
	"github.com/adamwoolhether/xfer/result"
)

func invalidArgument(format string, args ...any) error {
	return result.NewError(result.KindInvalidArgument, format, args...)
}

func reentrant(op string) error {
	return result.NewError(result.KindReentrant, "%s called from inside a callback", op)
}

func engineBug(format string, args ...any) error {
	return result.NewError(result.KindEngineBug, format, args...)
}

func genericError(format string, args ...any) error {
	return result.NewError(result.KindGeneric, format, args...)
}
