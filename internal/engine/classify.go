package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"github.com/adamwoolhether/xfer/result"
)

// classify maps a net/http error to a status code. proxy is the proxy
// hostname in use, if any, so that its resolution failure is told apart
// from the target's.
func classify(err error, proxy string) result.Code {
	var (
		dnsErr     *net.DNSError
		opErr      *net.OpError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		headerErr  tls.RecordHeaderError
		alertErr   tls.AlertError
	)

	switch {
	case errors.Is(err, errReadAborted):
		return result.CodeAbortedByCallback
	case errors.Is(err, errReadInvalid):
		return result.CodeReadError
	case errors.Is(err, errWriteAborted):
		return result.CodeWriteError
	case errors.Is(err, errTooManyRedirects):
		return result.CodeTooManyRedirects
	case errors.Is(err, ErrPinnedKeyMismatch):
		return result.CodeSSLPinnedPubKeyNotMatch
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return result.CodeOperationTimedOut
		}
		if proxy != "" && strings.EqualFold(dnsErr.Name, proxy) {
			return result.CodeCouldntResolveProxy
		}
		return result.CodeCouldntResolveHost
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded), isTimeout(err):
		return result.CodeOperationTimedOut
	case errors.Is(err, context.Canceled):
		return result.CodeAbortedByCallback
	case errors.As(err, &verifyErr), errors.As(err, &authErr), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return result.CodePeerFailedVerification
	case errors.As(err, &headerErr), errors.As(err, &alertErr):
		return result.CodeSSLConnectError
	case errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "proxyconnect"):
		return result.CodeCouldntConnect
	case strings.Contains(err.Error(), "http2:"):
		return result.CodeHTTP2
	case strings.Contains(err.Error(), "tls:"):
		return result.CodeSSLConnectError
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return result.CodeGotNothing
	case errors.As(err, &opErr) && opErr.Op == "write":
		return result.CodeSendError
	default:
		return result.CodeRecvError
	}
}

// classifyUpload maps an error raised by the upload body itself.
func classifyUpload(err error) result.Code {
	switch {
	case errors.Is(err, errReadAborted):
		return result.CodeAbortedByCallback
	case errors.Is(err, errReadShort):
		return result.CodeUploadFailed
	}

	return result.CodeReadError
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
