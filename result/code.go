package result

import "strconv"

// Code is the transfer engine's flat status code. The numbering follows the
// classic transfer-engine status space so that logs and detail strings stay
// recognisable; only a subset is ever produced by this module's engine, but
// Map accepts any value.
type Code int

const (
	CodeOK                      Code = 0
	CodeUnsupportedProtocol     Code = 1
	CodeFailedInit              Code = 2
	CodeURLMalformat            Code = 3
	CodeNotBuiltIn              Code = 4
	CodeCouldntResolveProxy     Code = 5
	CodeCouldntResolveHost      Code = 6
	CodeCouldntConnect          Code = 7
	CodeWeirdServerReply        Code = 8
	CodeRemoteAccessDenied      Code = 9
	CodeHTTP2                   Code = 16
	CodePartialFile             Code = 18
	CodeHTTPReturnedError       Code = 22
	CodeWriteError              Code = 23
	CodeUploadFailed            Code = 25
	CodeReadError               Code = 26
	CodeOutOfMemory             Code = 27
	CodeOperationTimedOut       Code = 28
	CodeRangeError              Code = 33
	CodeSSLConnectError         Code = 35
	CodeFileCouldntReadFile     Code = 37
	CodeAbortedByCallback       Code = 42
	CodeBadFunctionArgument     Code = 43
	CodeInterfaceFailed         Code = 45
	CodeTooManyRedirects        Code = 47
	CodeUnknownOption           Code = 48
	CodeGotNothing              Code = 52
	CodeSendError               Code = 55
	CodeRecvError               Code = 56
	CodePeerFailedVerification  Code = 60
	CodeBadContentEncoding      Code = 61
	CodeFilesizeExceeded        Code = 63
	CodeSendFailRewind          Code = 65
	CodeLoginDenied             Code = 67
	CodeRemoteFileNotFound      Code = 78
	CodeSSLPinnedPubKeyNotMatch Code = 90
	CodeHTTP2Stream             Code = 92
	CodeRecursiveAPICall        Code = 93
	CodeHTTP3                   Code = 95

	// CodeLast is one past the highest value the engine defines.
	CodeLast Code = 99
)

var codeNames = map[Code]string{
	CodeOK:                      "ok",
	CodeUnsupportedProtocol:     "unsupported_protocol",
	CodeFailedInit:              "failed_init",
	CodeURLMalformat:            "url_malformat",
	CodeNotBuiltIn:              "not_built_in",
	CodeCouldntResolveProxy:     "could_not_resolve_proxy",
	CodeCouldntResolveHost:      "could_not_resolve_host",
	CodeCouldntConnect:          "could_not_connect",
	CodeWeirdServerReply:        "weird_server_reply",
	CodeRemoteAccessDenied:      "remote_access_denied",
	CodeHTTP2:                   "http2",
	CodePartialFile:             "partial_file",
	CodeHTTPReturnedError:       "http_returned_error",
	CodeWriteError:              "write_error",
	CodeUploadFailed:            "upload_failed",
	CodeReadError:               "read_error",
	CodeOutOfMemory:             "out_of_memory",
	CodeOperationTimedOut:       "operation_timed_out",
	CodeRangeError:              "range_error",
	CodeSSLConnectError:         "ssl_connect_error",
	CodeFileCouldntReadFile:     "file_could_not_read",
	CodeAbortedByCallback:       "aborted_by_callback",
	CodeBadFunctionArgument:     "bad_function_argument",
	CodeInterfaceFailed:         "interface_failed",
	CodeTooManyRedirects:        "too_many_redirects",
	CodeUnknownOption:           "unknown_option",
	CodeGotNothing:              "got_nothing",
	CodeSendError:               "send_error",
	CodeRecvError:               "recv_error",
	CodePeerFailedVerification:  "peer_failed_verification",
	CodeBadContentEncoding:      "bad_content_encoding",
	CodeFilesizeExceeded:        "filesize_exceeded",
	CodeSendFailRewind:          "send_fail_rewind",
	CodeLoginDenied:             "login_denied",
	CodeRemoteFileNotFound:      "remote_file_not_found",
	CodeSSLPinnedPubKeyNotMatch: "ssl_pinned_pubkey_mismatch",
	CodeHTTP2Stream:             "http2_stream",
	CodeRecursiveAPICall:        "recursive_api_call",
	CodeHTTP3:                   "http3",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "code_" + strconv.Itoa(int(c))
}

// SchedCode is the scheduler's own status space, separate from the
// per-transfer Code.
type SchedCode int

const (
	SchedCallMultiPerform SchedCode = -1
	SchedOK               SchedCode = 0
	SchedBadHandle        SchedCode = 1
	SchedBadEasyHandle    SchedCode = 2
	SchedOutOfMemory      SchedCode = 3
	SchedInternalError    SchedCode = 4
	SchedBadSocket        SchedCode = 5
	SchedUnknownOption    SchedCode = 6
	SchedAddedAlready     SchedCode = 7
	SchedRecursiveAPICall SchedCode = 8
	SchedWakeupFailure    SchedCode = 9
	SchedBadFunctionArg   SchedCode = 10
)

var schedNames = map[SchedCode]string{
	SchedCallMultiPerform: "multi_call_perform",
	SchedOK:               "multi_ok",
	SchedBadHandle:        "multi_bad_handle",
	SchedBadEasyHandle:    "multi_bad_easy_handle",
	SchedOutOfMemory:      "multi_out_of_memory",
	SchedInternalError:    "multi_internal_error",
	SchedBadSocket:        "multi_bad_socket",
	SchedUnknownOption:    "multi_unknown_option",
	SchedAddedAlready:     "multi_added_already",
	SchedRecursiveAPICall: "multi_recursive_api_call",
	SchedWakeupFailure:    "multi_wakeup_failure",
	SchedBadFunctionArg:   "multi_bad_function_argument",
}

func (c SchedCode) String() string {
	if name, ok := schedNames[c]; ok {
		return name
	}

	return "multi_code_" + strconv.Itoa(int(c))
}
