package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/adamwoolhether/xfer/result"
)

func helloServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			b, _ := io.ReadAll(r.Body)
			w.Write(b)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(10 * time.Second):
			}
		default:
			fmt.Fprint(w, "hello")
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestNew_Options(t *testing.T) {
	testCases := []struct {
		name    string
		opts    []Option
		expKind result.Kind
	}{
		{name: "empty url", opts: []Option{WithURL("")}, expKind: result.KindInvalidArgument},
		{name: "negative timeout", opts: []Option{WithTimeout(-time.Second)}, expKind: result.KindInvalidArgument},
		{name: "negative redirects", opts: []Option{WithFollowRedirects(-1)}, expKind: result.KindInvalidArgument},
		{name: "bad proxy", opts: []Option{WithProxy("::nope")}, expKind: result.KindInvalidArgument},
		{name: "bad pin", opts: []Option{WithPinnedPublicKey("md5//abc")}, expKind: result.KindInvalidArgument},
		{name: "bad source ip", opts: []Option{WithSourceIP("300.1.1.1")}, expKind: result.KindInvalidArgument},
		{name: "bad upload length", opts: []Option{WithReadBack(nil, -2)}, expKind: result.KindInvalidArgument},
		{name: "nil logger", opts: []Option{WithLogger(nil)}, expKind: result.KindInvalidArgument},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := New(tc.opts...)
			if h != nil {
				t.Error("exp nil handle on error")
			}

			kind, ok := result.KindOf(err)
			if !ok {
				t.Fatalf("exp *result.Error, got: %v", err)
			}
			if kind != tc.expKind {
				t.Errorf("exp kind %s, got %s", tc.expKind, kind)
			}
		})
	}
}

func TestPerform_Standalone(t *testing.T) {
	srv := helloServer(t)

	var body bytes.Buffer
	h, err := New(
		WithURL(srv.URL),
		WithUserAgent("xfer-test"),
		WithWriteBack(BufferWriteBack(&body)),
	)
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	defer h.Close()

	out, err := h.Perform(context.Background())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if out != result.OK {
		t.Fatalf("exp %s, got %s (%s)", result.OK, out, h.ErrorDetail())
	}
	if body.String() != "hello" {
		t.Errorf("exp body %q, got %q", "hello", body.String())
	}
	if h.ResponseCode() != http.StatusOK {
		t.Errorf("exp status 200, got %d", h.ResponseCode())
	}
	if h.BytesDownloaded() != 5 {
		t.Errorf("exp 5 bytes, got %d", h.BytesDownloaded())
	}
	if h.TotalTime() <= 0 {
		t.Error("exp positive total time")
	}
}

func TestPerform_MalformedURL(t *testing.T) {
	h, err := New(WithURL("not a url"))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.Perform(context.Background())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if out != result.MalformedURL {
		t.Errorf("exp %s, got %s", result.MalformedURL, out)
	}
}

func TestPerform_WriteBackAborted(t *testing.T) {
	srv := helloServer(t)

	h, err := New(
		WithURL(srv.URL),
		WithWriteBack(func(p []byte) int { return 0 }),
	)
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.Perform(context.Background())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if out != result.WriteBackAborted {
		t.Errorf("exp %s, got %s", result.WriteBackAborted, out)
	}
}

func TestPerform_Upload(t *testing.T) {
	srv := helloServer(t)

	var body bytes.Buffer
	h, err := New(
		WithURL(srv.URL+"/echo"),
		WithReadBack(ReadFrom(strings.NewReader("ping")), 4),
		WithWriteBack(WriteTo(&body)),
	)
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.Perform(context.Background())
	if err != nil || out != result.OK {
		t.Fatalf("exp ok, got %s, %v (%s)", out, err, h.ErrorDetail())
	}
	if diff := cmp.Diff("ping", body.String()); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
	if h.BytesUploaded() != 4 {
		t.Errorf("exp 4 bytes uploaded, got %d", h.BytesUploaded())
	}
}

func TestPerform_ReadAbort(t *testing.T) {
	srv := helloServer(t)

	h, err := New(
		WithURL(srv.URL+"/echo"),
		WithReadBack(func(p []byte) int { return ReadAbort }, SizeUnknown),
	)
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.Perform(context.Background())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if out != result.CallbackAborted {
		t.Errorf("exp %s, got %s", result.CallbackAborted, out)
	}
}

func TestPerform_ReentrantFromCallback(t *testing.T) {
	srv := helloServer(t)

	testCases := []struct {
		name string
		path string
		opts func(reenter func()) []Option
	}{
		{
			name: "write back",
			path: "/",
			opts: func(reenter func()) []Option {
				return []Option{WithWriteBack(func(p []byte) int {
					reenter()
					return len(p)
				})}
			},
		},
		{
			name: "read back",
			path: "/echo",
			opts: func(reenter func()) []Option {
				body := ReadFrom(strings.NewReader("ping"))
				return []Option{WithReadBack(func(p []byte) int {
					reenter()
					return body(p)
				}, 4)}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var h *Handle
			inner := make(chan error, 1)
			reenter := func() {
				_, err := h.Perform(context.Background())
				select {
				case inner <- err:
				default:
				}
			}

			h, err := New(append([]Option{WithURL(srv.URL + tc.path)}, tc.opts(reenter)...)...)
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			out, err := h.Perform(context.Background())
			if err != nil || out != result.OK {
				t.Fatalf("exp ok, got %s, %v (%s)", out, err, h.ErrorDetail())
			}

			select {
			case err := <-inner:
				if !errors.Is(err, result.ErrReentrant) {
					t.Errorf("exp %v, got: %v", result.ErrReentrant, err)
				}
			default:
				t.Fatal("exp the callback to run")
			}

			if h.inCallback.Load() {
				t.Error("exp callback guard to be lowered after Perform")
			}
		})
	}
}

func TestPerform_Timeout(t *testing.T) {
	srv := helloServer(t)

	h, err := New(WithURL(srv.URL+"/slow"), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.Perform(context.Background())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if out != result.TimedOut {
		t.Errorf("exp %s, got %s", result.TimedOut, out)
	}
}

func TestPerform_Decompression(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	zw.Write([]byte("hello, gzip"))
	zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	testCases := []struct {
		name string
		opt  Option
		exp  []byte
	}{
		{name: "decoded", opt: WithAcceptEncoding(""), exp: []byte("hello, gzip")},
		{name: "raw", opt: WithNoDecompression(), exp: compressed.Bytes()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body bytes.Buffer
			h, err := New(WithURL(srv.URL), WithWriteBack(BufferWriteBack(&body)), tc.opt)
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			out, err := h.Perform(context.Background())
			if err != nil || out != result.OK {
				t.Fatalf("exp ok, got %s, %v (%s)", out, err, h.ErrorDetail())
			}
			if diff := cmp.Diff(tc.exp, body.Bytes()); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConnectOnly(t *testing.T) {
	methods := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods <- r.Method
	}))
	defer srv.Close()

	h, err := New(WithURL(srv.URL))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	out, err := h.ConnectOnly(context.Background())
	if err != nil || out != result.OK {
		t.Fatalf("exp ok, got %s, %v", out, err)
	}
	if h.easy.NoBody {
		t.Error("exp ConnectOnly to leave the handle configuration untouched")
	}
	if m := <-methods; m != http.MethodHead {
		t.Errorf("exp %s, got %s", http.MethodHead, m)
	}
}

func TestHandle_Clone(t *testing.T) {
	h, err := New(WithURL("http://example.com/"), WithTimeout(time.Second), WithHeader("X-A", "1"), WithPrivate("tag"))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	c, err := h.Clone()
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	if c.ID() == h.ID() {
		t.Error("exp clone to get a new id")
	}
	if c.URL() != h.URL() || c.easy.Timeout != h.easy.Timeout || c.Private() != "tag" {
		t.Error("exp clone to copy configuration")
	}

	c.easy.Header.Set("X-A", "2")
	if h.easy.Header.Get("X-A") != "1" {
		t.Error("exp clone headers to be independent")
	}
}

func TestHandle_Close(t *testing.T) {
	h, err := New(WithURL("http://example.com/"))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("exp repeated close to succeed, got: %v", err)
	}

	if err := h.SetURL("http://example.org/"); !errors.Is(err, result.ErrInvalidArgument) {
		t.Errorf("exp ErrInvalidArgument, got: %v", err)
	}
	if _, err := h.Perform(context.Background()); !errors.Is(err, result.ErrInvalidArgument) {
		t.Errorf("exp ErrInvalidArgument, got: %v", err)
	}
}

func TestReadFrom_Error(t *testing.T) {
	fn := ReadFrom(io.MultiReader(strings.NewReader("ab"), errReader{}))

	buf := make([]byte, 8)
	if n := fn(buf); n != 2 {
		t.Errorf("exp 2, got %d", n)
	}
	if n := fn(buf); n != ReadAbort {
		t.Errorf("exp ReadAbort, got %d", n)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
