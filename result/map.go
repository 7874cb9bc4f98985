package result

import "fmt"

var outcomes = map[Code]Outcome{
	CodeOK:                      OK,
	CodeURLMalformat:            MalformedURL,
	CodeUnsupportedProtocol:     UnsupportedProtocol,
	CodeCouldntResolveProxy:     ProxyResolutionFailed,
	CodeCouldntResolveHost:      HostResolutionFailed,
	CodeCouldntConnect:          ConnectionFailed,
	CodeRemoteAccessDenied:      AccessDenied,
	CodeLoginDenied:             AccessDenied,
	CodeWriteError:              WriteBackAborted,
	CodeUploadFailed:            UploadFailed,
	CodeReadError:               UploadFailed,
	CodeSendFailRewind:          UploadFailed,
	CodeOperationTimedOut:       TimedOut,
	CodeAbortedByCallback:       CallbackAborted,
	CodeTooManyRedirects:        TooManyRedirects,
	CodeSSLPinnedPubKeyNotMatch: PinnedKeyMismatch,
}

var kinds = map[Code]Kind{
	CodeOutOfMemory:         KindAllocation,
	CodeBadFunctionArgument: KindInvalidArgument,
	CodeFilesizeExceeded:    KindLengthExceeded,
	CodeRecursiveAPICall:    KindReentrant,
	CodeNotBuiltIn:          KindNotBuiltIn,
	CodeHTTP2:               KindProtocolInternal,
	CodeSSLConnectError:     KindProtocolInternal,
	CodeUnknownOption:       KindProtocolInternal,
	CodeHTTP3:               KindProtocolInternal,
}

// Map translates an engine status code into exactly one Outcome or one
// *Error. detail is the transfer's error buffer; it is only carried by
// protocol-internal errors and generic engine errors. Map is total: codes
// it does not know become a KindGeneric error holding the code.
func Map(code Code, detail string) (Outcome, error) {
	if o, ok := outcomes[code]; ok {
		return o, nil
	}

	k, ok := kinds[code]
	if !ok {
		return None, &Error{Kind: KindGeneric, Code: code, Detail: detail, Err: ErrGeneric}
	}

	e := &Error{Kind: k, Code: code, Err: sentinel(k)}
	if k == KindProtocolInternal {
		e.Detail = code.String()
		if detail != "" {
			e.Detail = fmt.Sprintf("%s: %s", code, detail)
		}
	}

	return None, e
}

// MapScheduler translates a scheduler status into an error; SchedOK and
// SchedCallMultiPerform yield nil.
func MapScheduler(code SchedCode) error {
	switch code {
	case SchedOK, SchedCallMultiPerform:
		return nil
	case SchedOutOfMemory:
		return &Error{Kind: KindAllocation, Err: ErrAllocation, Detail: code.String()}
	case SchedInternalError:
		return &Error{Kind: KindEngineBug, Err: ErrEngineBug, Detail: code.String()}
	case SchedRecursiveAPICall:
		return &Error{Kind: KindReentrant, Err: ErrReentrant, Detail: code.String()}
	case SchedBadHandle, SchedBadEasyHandle, SchedBadSocket, SchedBadFunctionArg, SchedUnknownOption, SchedAddedAlready:
		return &Error{Kind: KindInvalidArgument, Err: ErrInvalidArgument, Detail: code.String()}
	default:
		return &Error{Kind: KindGeneric, Err: ErrGeneric, Detail: code.String()}
	}
}
