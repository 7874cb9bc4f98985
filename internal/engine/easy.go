// Package engine is the transfer engine behind transfer.Handle. It runs a
// single URL transfer to completion on the calling goroutine and reports a
// flat result.Code plus an error-detail buffer, leaving all typing of the
// outcome to package result.
package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adamwoolhether/xfer/result"
)

// ReadAbort returned from a read callback aborts the transfer.
const ReadAbort = -1

// SizeUnknown declares an upload of unknown length.
const SizeUnknown int64 = -1

// chunkSize bounds a single write callback invocation.
const chunkSize = 16 << 10 // 16KB

// maxErrBodySize caps the body kept in the error buffer for a failed
// status when FailOnError is set.
const maxErrBodySize = 256

// defaultMaxRedirects matches net/http's own limit.
const defaultMaxRedirects = 10

// Easy is the per-transfer configuration and state. It is not safe for
// concurrent use; the owner serialises access.
type Easy struct {
	URL            string
	Method         string
	Header         http.Header
	UserAgent      string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	NoFollow       bool
	MaxRedirects   int
	FailOnError    bool
	Proxy          string
	PinnedKey      string
	SourceIP       string
	PostFields     []byte
	NoBody         bool

	// AcceptEncoding is advertised to the server and the response decoded
	// to match. Empty leaves both to net/http.
	AcceptEncoding string
	// RawEncoding turns decoding off: nothing is advertised and the body
	// is delivered as the server sent it.
	RawEncoding bool

	// Info is filled by Perform.
	Info Info
	// ErrBuf holds a human-readable reason for the last non-OK code.
	ErrBuf string
}

// Info describes the last completed transfer.
type Info struct {
	ResponseCode int
	HeaderSize   int64
	Downloaded   int64
	Uploaded     int64
	TotalTime    time.Duration
}

// New returns an Easy with defaults applied.
func New() *Easy {
	return &Easy{
		Header:       make(http.Header),
		MaxRedirects: defaultMaxRedirects,
	}
}

// Clone deep-copies the configuration; Info and ErrBuf are reset.
func (e *Easy) Clone() *Easy {
	c := *e
	c.Header = e.Header.Clone()
	if e.PostFields != nil {
		c.PostFields = bytes.Clone(e.PostFields)
	}
	c.Info = Info{}
	c.ErrBuf = ""

	return &c
}

// Profile returns the connection-level settings that decide which pooled
// transport the transfer may use.
func (e *Easy) Profile() Profile {
	return Profile{
		Proxy:          e.Proxy,
		SourceIP:       e.SourceIP,
		PinnedKey:      e.PinnedKey,
		ConnectTimeout: e.ConnectTimeout,
		RawEncoding:    e.RawEncoding,
	}
}

// IO carries the caller's data callbacks. A nil Write discards the body;
// a nil Read means no upload body.
type IO struct {
	Write   func(p []byte) int
	Read    func(p []byte) int
	ReadLen int64
}

// Env supplies the resources a transfer runs against.
type Env struct {
	Transports Transports
	Resolver   Resolver
	Sessions   tls.ClientSessionCache
	Wrap       func(http.RoundTripper) http.RoundTripper
	Jar        http.CookieJar
	Inject     func(ctx context.Context, h http.Header)
	Logger     *slog.Logger
}

var (
	errWriteAborted     = errors.New("failure writing output to destination")
	errReadAborted      = errors.New("operation aborted by read callback")
	errReadInvalid      = errors.New("read callback returned an invalid length")
	errReadShort        = errors.New("read callback ended before the declared upload size")
	errTooManyRedirects = errors.New("maximum redirects followed")
)

// Perform runs the transfer and returns its status. It blocks until the
// transfer completes, fails, or ctx ends.
func (e *Easy) Perform(ctx context.Context, env Env, cb IO) result.Code {
	start := time.Now()
	e.Info = Info{}
	e.ErrBuf = ""

	code := e.perform(ctx, env, cb)
	e.Info.TotalTime = time.Since(start)

	if env.Logger != nil {
		env.Logger.Debug("transfer finished", "url", e.URL, "code", code, "status", e.Info.ResponseCode, "elapsed", e.Info.TotalTime)
	}

	return code
}

func (e *Easy) perform(ctx context.Context, env Env, cb IO) result.Code {
	u, err := url.Parse(e.URL)
	if err != nil {
		return e.fail(result.CodeURLMalformat, err.Error())
	}
	if u.Scheme == "" {
		return e.fail(result.CodeURLMalformat, fmt.Sprintf("no scheme in URL %q", e.URL))
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return e.fail(result.CodeURLMalformat, fmt.Sprintf("no host in URL %q", e.URL))
		}
		return e.performHTTP(ctx, u, env, cb)
	case "file":
		return e.performFile(ctx, u, cb)
	default:
		return e.fail(result.CodeUnsupportedProtocol, fmt.Sprintf("protocol %q not supported", u.Scheme))
	}
}

func (e *Easy) performHTTP(ctx context.Context, u *url.URL, env Env, cb IO) result.Code {
	if env.Transports == nil {
		return e.fail(result.CodeFailedInit, "no transport configured")
	}

	pr := e.Profile()
	pr.Resolver, pr.Sessions = env.Resolver, env.Sessions

	base, err := env.Transports.Transport(pr)
	if err != nil {
		return e.fail(result.CodeFailedInit, err.Error())
	}

	var rt http.RoundTripper = base
	if env.Wrap != nil {
		rt = env.Wrap(rt)
	}

	var (
		body    io.Reader
		length  int64
		upload  *callbackReader
		hasBody bool
	)
	switch {
	case cb.Read != nil:
		upload = &callbackReader{read: cb.Read, want: cb.ReadLen}
		body, length, hasBody = upload, cb.ReadLen, true
	case e.PostFields != nil:
		body, length, hasBody = bytes.NewReader(e.PostFields), int64(len(e.PostFields)), true
	}

	method := e.Method
	switch {
	case e.NoBody:
		method = http.MethodHead
	case method == "" && hasBody:
		method = http.MethodPost
	case method == "":
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return e.fail(result.CodeURLMalformat, err.Error())
	}
	if hasBody {
		req.ContentLength = length
		if length < 0 {
			req.ContentLength = -1
		}
	}

	for k, vs := range e.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}
	if e.AcceptEncoding != "" && !e.RawEncoding {
		req.Header.Set("Accept-Encoding", e.AcceptEncoding)
	}
	if env.Inject != nil {
		env.Inject(ctx, req.Header)
	}

	hc := &http.Client{
		Transport:     rt,
		Jar:           env.Jar,
		CheckRedirect: e.checkRedirect,
	}

	resp, err := hc.Do(req)

	var uerr error
	if upload != nil {
		e.Info.Uploaded, uerr = upload.state()
	}
	if err != nil {
		if uerr != nil {
			return e.fail(classifyUpload(uerr), uerr.Error())
		}
		return e.fail(classify(err, proxyHost(e.Proxy)), err.Error())
	}
	if uerr != nil {
		resp.Body.Close()
		return e.fail(classifyUpload(uerr), uerr.Error())
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && env.Logger != nil {
			env.Logger.Error("failed to close response body", "error", err)
		}
	}()

	e.Info.ResponseCode = resp.StatusCode
	e.Info.HeaderSize = headerSize(resp)

	if e.FailOnError && resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		detail := fmt.Sprintf("the requested URL returned error: %d %s", resp.StatusCode, strings.TrimSpace(string(b)))

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return e.fail(result.CodeLoginDenied, detail)
		case http.StatusForbidden:
			return e.fail(result.CodeRemoteAccessDenied, detail)
		default:
			return e.fail(result.CodeHTTPReturnedError, detail)
		}
	}

	dec, err := e.decodeBody(resp)
	if err != nil {
		return e.fail(result.CodeBadContentEncoding, err.Error())
	}
	defer dec.Close()

	n, err := deliver(dec, cb.Write)
	e.Info.Downloaded = n
	if err != nil {
		if errors.Is(err, errWriteAborted) {
			return e.fail(result.CodeWriteError, err.Error())
		}
		if errors.Is(err, errBadEncoding) {
			return e.fail(result.CodeBadContentEncoding, err.Error())
		}
		if resp.ContentLength >= 0 && n < resp.ContentLength && errors.Is(err, io.ErrUnexpectedEOF) {
			return e.fail(result.CodePartialFile, fmt.Sprintf("transferred a partial file: %d of %d bytes", n, resp.ContentLength))
		}
		return e.fail(classify(err, ""), err.Error())
	}

	return result.CodeOK
}

func (e *Easy) checkRedirect(req *http.Request, via []*http.Request) error {
	if e.NoFollow {
		return http.ErrUseLastResponse
	}
	if len(via) > e.MaxRedirects {
		return fmt.Errorf("%w: %d", errTooManyRedirects, e.MaxRedirects)
	}

	return nil
}

func (e *Easy) fail(code result.Code, detail string) result.Code {
	e.ErrBuf = detail
	return code
}

// deliver copies r to write in chunks. A short count from write aborts.
func deliver(r io.Reader, write func([]byte) int) (int64, error) {
	buf := make([]byte, chunkSize)

	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if write != nil {
				if w := write(buf[:n]); w != n {
					return total, errWriteAborted
				}
			}
			total += int64(n)
		}

		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// headerSize approximates the bytes of the status line and headers.
func headerSize(resp *http.Response) int64 {
	size := int64(len(resp.Proto) + len(resp.Status) + 3)
	for k, vs := range resp.Header {
		for _, v := range vs {
			size += int64(len(k) + len(v) + 4)
		}
	}

	return size + 2
}

func proxyHost(proxy string) string {
	if proxy == "" {
		return ""
	}

	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return ""
	}

	return u.Hostname()
}

// callbackReader adapts a read callback to io.Reader. net/http may still
// be reading the body after the response arrives, so state is guarded.
// A positive want makes an end of stream before want bytes an error.
type callbackReader struct {
	read func(p []byte) int
	want int64

	mu   sync.Mutex
	sent int64
	err  error
}

func (r *callbackReader) Read(p []byte) (int, error) {
	if _, err := r.state(); err != nil {
		return 0, err
	}

	n := r.read(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case n == ReadAbort:
		r.err = errReadAborted
		return 0, r.err
	case n == 0 && r.sent < r.want:
		r.err = fmt.Errorf("%w: sent %d of %d bytes", errReadShort, r.sent, r.want)
		return 0, r.err
	case n == 0:
		return 0, io.EOF
	case n < 0 || n > len(p):
		r.err = fmt.Errorf("%w: %d", errReadInvalid, n)
		return 0, r.err
	}

	r.sent += int64(n)

	return n, nil
}

func (r *callbackReader) state() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sent, r.err
}
