package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// SupportedEncodings lists every content coding the engine can decode.
const SupportedEncodings = "gzip, deflate, zstd"

var errBadEncoding = errors.New("unrecognized content encoding")

// decodeBody returns the response body decoded per its Content-Encoding.
// Bodies pass through untouched unless the transfer asked for an encoding
// itself; net/http already decodes its own gzip requests.
func (e *Easy) decodeBody(resp *http.Response) (io.ReadCloser, error) {
	if e.AcceptEncoding == "" || resp.Uncompressed || e.NoBody {
		return io.NopCloser(resp.Body), nil
	}

	coding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var (
		rc  io.ReadCloser
		err error
	)
	switch coding {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		rc, err = gzip.NewReader(resp.Body)
	case "deflate":
		rc, err = zlib.NewReader(resp.Body)
	case "zstd":
		var d *zstd.Decoder
		d, err = zstd.NewReader(resp.Body, zstd.WithDecoderConcurrency(1))
		if err == nil {
			rc = d.IOReadCloser()
		}
	default:
		return nil, fmt.Errorf("%w: %q", errBadEncoding, coding)
	}

	switch {
	case errors.Is(err, io.EOF):
		return io.NopCloser(resp.Body), nil
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", errBadEncoding, coding, err)
	}

	return &decodeReader{rc: rc, coding: coding}, nil
}

// decodeReader marks decoder failures so they classify as bad encodings.
type decodeReader struct {
	rc     io.ReadCloser
	coding string
}

func (d *decodeReader) Read(p []byte) (int, error) {
	n, err := d.rc.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %s: %w", errBadEncoding, d.coding, err)
	}

	return n, err
}

func (d *decodeReader) Close() error {
	return d.rc.Close()
}
