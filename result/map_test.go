package result_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/adamwoolhether/xfer/result"
)

func TestMap_Outcomes(t *testing.T) {
	testCases := []struct {
		code result.Code
		exp  result.Outcome
	}{
		{result.CodeOK, result.OK},
		{result.CodeURLMalformat, result.MalformedURL},
		{result.CodeUnsupportedProtocol, result.UnsupportedProtocol},
		{result.CodeCouldntResolveProxy, result.ProxyResolutionFailed},
		{result.CodeCouldntResolveHost, result.HostResolutionFailed},
		{result.CodeCouldntConnect, result.ConnectionFailed},
		{result.CodeRemoteAccessDenied, result.AccessDenied},
		{result.CodeLoginDenied, result.AccessDenied},
		{result.CodeWriteError, result.WriteBackAborted},
		{result.CodeUploadFailed, result.UploadFailed},
		{result.CodeReadError, result.UploadFailed},
		{result.CodeOperationTimedOut, result.TimedOut},
		{result.CodeAbortedByCallback, result.CallbackAborted},
		{result.CodeTooManyRedirects, result.TooManyRedirects},
		{result.CodeSSLPinnedPubKeyNotMatch, result.PinnedKeyMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.code.String(), func(t *testing.T) {
			out, err := result.Map(tc.code, "ignored")
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}
			if out != tc.exp {
				t.Errorf("exp outcome %s, got %s", tc.exp, out)
			}
		})
	}
}

func TestMap_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		code   result.Code
		detail string
		exp    *result.Error
		expIs  error
	}{
		{
			name:  "out of memory",
			code:  result.CodeOutOfMemory,
			exp:   &result.Error{Kind: result.KindAllocation, Code: result.CodeOutOfMemory},
			expIs: result.ErrAllocation,
		},
		{
			name:  "bad argument",
			code:  result.CodeBadFunctionArgument,
			exp:   &result.Error{Kind: result.KindInvalidArgument, Code: result.CodeBadFunctionArgument},
			expIs: result.ErrInvalidArgument,
		},
		{
			name:  "recursive call",
			code:  result.CodeRecursiveAPICall,
			exp:   &result.Error{Kind: result.KindReentrant, Code: result.CodeRecursiveAPICall},
			expIs: result.ErrReentrant,
		},
		{
			name:  "not built in",
			code:  result.CodeNotBuiltIn,
			exp:   &result.Error{Kind: result.KindNotBuiltIn, Code: result.CodeNotBuiltIn},
			expIs: result.ErrNotBuiltIn,
		},
		{
			name:  "filesize",
			code:  result.CodeFilesizeExceeded,
			exp:   &result.Error{Kind: result.KindLengthExceeded, Code: result.CodeFilesizeExceeded},
			expIs: result.ErrLengthExceeded,
		},
		{
			name:   "http2 carries detail",
			code:   result.CodeHTTP2,
			detail: "stream reset",
			exp:    &result.Error{Kind: result.KindProtocolInternal, Code: result.CodeHTTP2, Detail: "http2: stream reset"},
			expIs:  result.ErrProtocolInternal,
		},
		{
			name:  "http2 without detail",
			code:  result.CodeHTTP2,
			exp:   &result.Error{Kind: result.KindProtocolInternal, Code: result.CodeHTTP2, Detail: "http2"},
			expIs: result.ErrProtocolInternal,
		},
		{
			name:   "tls connect carries detail",
			code:   result.CodeSSLConnectError,
			detail: "handshake failure",
			exp:    &result.Error{Kind: result.KindProtocolInternal, Code: result.CodeSSLConnectError, Detail: "ssl_connect_error: handshake failure"},
			expIs:  result.ErrProtocolInternal,
		},
		{
			name:   "unknown code",
			code:   result.Code(12345),
			detail: "who knows",
			exp:    &result.Error{Kind: result.KindGeneric, Code: result.Code(12345), Detail: "who knows"},
			expIs:  result.ErrGeneric,
		},
		{
			name:  "negative code",
			code:  result.Code(-7),
			exp:   &result.Error{Kind: result.KindGeneric, Code: result.Code(-7)},
			expIs: result.ErrGeneric,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := result.Map(tc.code, tc.detail)
			if out != result.None {
				t.Errorf("exp outcome none alongside an error, got %s", out)
			}
			if !errors.Is(err, tc.expIs) {
				t.Fatalf("exp err %v; got: %v", tc.expIs, err)
			}

			var rerr *result.Error
			if !errors.As(err, &rerr) {
				t.Fatalf("exp *result.Error, got %T", err)
			}
			if diff := cmp.Diff(tc.exp, rerr, cmpopts.IgnoreFields(result.Error{}, "Err")); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMap_Total(t *testing.T) {
	for code := result.Code(-5); code <= result.CodeLast+5; code++ {
		out, err := result.Map(code, "detail")

		switch {
		case err == nil && out == result.None:
			t.Errorf("code %d: neither outcome nor error", code)
		case err != nil && out != result.None:
			t.Errorf("code %d: both outcome %s and error %v", code, out, err)
		}

		if err != nil {
			if _, ok := result.KindOf(err); !ok {
				t.Errorf("code %d: error is not a *result.Error: %v", code, err)
			}
		}
	}
}

func TestMapScheduler(t *testing.T) {
	testCases := []struct {
		code    result.SchedCode
		expKind result.Kind
		expNil  bool
	}{
		{code: result.SchedOK, expNil: true},
		{code: result.SchedCallMultiPerform, expNil: true},
		{code: result.SchedOutOfMemory, expKind: result.KindAllocation},
		{code: result.SchedInternalError, expKind: result.KindEngineBug},
		{code: result.SchedRecursiveAPICall, expKind: result.KindReentrant},
		{code: result.SchedBadSocket, expKind: result.KindInvalidArgument},
		{code: result.SchedCode(77), expKind: result.KindGeneric},
	}

	for _, tc := range testCases {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := result.MapScheduler(tc.code)
			if tc.expNil {
				if err != nil {
					t.Errorf("exp nil err, got: %v", err)
				}
				return
			}

			kind, ok := result.KindOf(err)
			if !ok {
				t.Fatalf("exp *result.Error, got %v", err)
			}
			if kind != tc.expKind {
				t.Errorf("exp kind %s, got %s", tc.expKind, kind)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	_, err := result.Map(result.CodeHTTP2, "GOAWAY received")
	if !strings.Contains(err.Error(), "GOAWAY received") {
		t.Errorf("exp detail in message, got %q", err.Error())
	}

	err = result.NewError(result.KindInvalidArgument, "handle %s is closed", "abc")
	if got, exp := err.Error(), "invalid argument: handle abc is closed"; got != exp {
		t.Errorf("exp %q, got %q", exp, got)
	}
}
