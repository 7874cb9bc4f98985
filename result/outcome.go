package result

import "strconv"

// Outcome is the expected, non-exceptional result of a finished transfer.
//
// The zero value is None. Map never returns None together with a nil error,
// so a plain equality check against OK cannot mask an Error.
type Outcome uint8

const (
	None Outcome = iota
	OK
	MalformedURL
	UnsupportedProtocol
	ProxyResolutionFailed
	HostResolutionFailed
	ConnectionFailed
	AccessDenied
	WriteBackAborted
	UploadFailed
	TimedOut
	CallbackAborted
	TooManyRedirects
	PinnedKeyMismatch
)

var outcomeNames = [...]string{
	None:                  "none",
	OK:                    "ok",
	MalformedURL:          "malformed_url",
	UnsupportedProtocol:   "unsupported_protocol",
	ProxyResolutionFailed: "proxy_resolution_failed",
	HostResolutionFailed:  "host_resolution_failed",
	ConnectionFailed:      "connection_failed",
	AccessDenied:          "access_denied",
	WriteBackAborted:      "write_back_aborted",
	UploadFailed:          "upload_failed",
	TimedOut:              "timed_out",
	CallbackAborted:       "callback_aborted",
	TooManyRedirects:      "too_many_redirects",
	PinnedKeyMismatch:     "pinned_key_mismatch",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}

	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Succeeded reports whether o is OK.
func (o Outcome) Succeeded() bool {
	return o == OK
}
