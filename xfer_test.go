package xfer_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/xfer"
	"github.com/adamwoolhether/xfer/result"
	"github.com/adamwoolhether/xfer/transfer"
	"github.com/adamwoolhether/xfer/transfer/download"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(10 * time.Second):
			}
		default:
			fmt.Fprint(w, "payload")
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func TestFetch(t *testing.T) {
	ts := newServer(t)

	b, err := xfer.Fetch(t.Context(), ts.URL, transfer.WithUserAgent("xfer-test/1.0"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(b) != "payload" {
		t.Errorf("exp body %q, got %q", "payload", b)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	ts := newServer(t)

	_, err := xfer.Fetch(t.Context(), ts.URL+"/missing", transfer.WithFailOnError())
	kind, ok := result.KindOf(err)
	if !ok {
		t.Fatalf("exp *result.Error, got: %v", err)
	}
	if kind != result.KindGeneric {
		t.Errorf("exp kind %s, got %s", result.KindGeneric, kind)
	}
}

func TestFetch_Outcome(t *testing.T) {
	_, err := xfer.Fetch(t.Context(), "not a url")

	var oe *xfer.OutcomeError
	if !errors.As(err, &oe) {
		t.Fatalf("exp *OutcomeError, got: %v", err)
	}
	if oe.Outcome != result.MalformedURL {
		t.Errorf("exp %s, got %s", result.MalformedURL, oe.Outcome)
	}
}

func TestDownload(t *testing.T) {
	ts := newServer(t)
	dir := t.TempDir()

	sum := sha256.Sum256([]byte("payload"))
	good := hex.EncodeToString(sum[:])

	testCases := []struct {
		name    string
		url     string
		opts    []download.Option
		expErr  error
		expFile bool
	}{
		{
			name:    "ok",
			url:     ts.URL,
			opts:    []download.Option{download.WithChecksum(sha256.New(), good), download.WithExpectedSize(7)},
			expFile: true,
		},
		{
			name:   "checksum",
			url:    ts.URL,
			opts:   []download.Option{download.WithChecksum(sha256.New(), strings.Repeat("0", 64))},
			expErr: download.ErrChecksumMismatch,
		},
		{
			name:   "too large",
			url:    ts.URL,
			opts:   []download.Option{download.WithMaxSize(3)},
			expErr: download.ErrTooLarge,
		},
		{
			name:   "failed transfer",
			url:    "http://",
			expErr: xfer.ErrTransferFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(dir, tc.name+".bin")

			err := xfer.Download(t.Context(), tc.url, dest, tc.opts)
			if tc.expErr == nil && err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if tc.expErr != nil && !errors.Is(err, tc.expErr) {
				t.Fatalf("exp %v, got: %v", tc.expErr, err)
			}

			_, statErr := os.Stat(dest)
			if exists := statErr == nil; exists != tc.expFile {
				t.Errorf("exp file present %v, got %v", tc.expFile, exists)
			}

			leftovers, _ := filepath.Glob(filepath.Join(dir, ".xfer-dl-*"))
			if len(leftovers) != 0 {
				t.Errorf("exp temp files removed, got %v", leftovers)
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	ts := newServer(t)

	var handles []*transfer.Handle
	for _, p := range []string{"/a", "/b", "/missing"} {
		h, err := transfer.New(transfer.WithURL(ts.URL+p), transfer.WithFailOnError())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		handles = append(handles, h)
	}

	results, err := xfer.RunAll(t.Context(), handles, transfer.WithMaxTotalTransfers(2))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := make([]bool, len(handles))
	for i, h := range handles {
		got[i] = results[h].Err == nil && results[h].Outcome == result.OK
	}
	if diff := cmp.Diff([]bool{true, true, false}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAll_Cancel(t *testing.T) {
	ts := newServer(t)

	h, err := transfer.New(transfer.WithURL(ts.URL + "/slow"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := xfer.RunAll(ctx, []*transfer.Handle{h})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("exp context.DeadlineExceeded, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("exp prompt cancellation, took %v", elapsed)
	}
	if !errors.Is(results[h].Err, context.DeadlineExceeded) {
		t.Errorf("exp handle cancelled, got: %v", results[h].Err)
	}
	if h.InFlight() {
		t.Error("exp handle idle after cancellation")
	}
}

func TestURL(t *testing.T) {
	testCases := []struct {
		name   string
		scheme string
		host   string
		path   string
		opts   []xfer.URLOption
		exp    string
	}{
		{
			name:   "port and query",
			scheme: "https",
			host:   "example.com",
			path:   "/v1/items",
			opts:   []xfer.URLOption{xfer.WithPort(8443), xfer.WithQuery("page", "2")},
			exp:    "https://example.com:8443/v1/items?page=2",
		},
		{
			name: "default scheme",
			host: "example.com",
			path: "/",
			exp:  "https://example.com/",
		},
		{
			name:   "repeated query key",
			scheme: "http",
			host:   "example.com",
			path:   "/search",
			opts:   []xfer.URLOption{xfer.WithQuery("tag", "a"), xfer.WithQuery("tag", "b")},
			exp:    "http://example.com/search?tag=a&tag=b",
		},
		{
			name:   "ipv6 with port",
			scheme: "http",
			host:   "::1",
			path:   "/x",
			opts:   []xfer.URLOption{xfer.WithPort(8080)},
			exp:    "http://[::1]:8080/x",
		},
		{
			name:   "bracketed ipv6",
			scheme: "http",
			host:   "[::1]",
			path:   "/x",
			exp:    "http://[::1]/x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := xfer.URL(tc.scheme, tc.host, tc.path, tc.opts...)
			if got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}
