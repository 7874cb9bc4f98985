package transfer

import (
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/adamwoolhether/xfer/internal/engine"
)

// Option is a functional option for configuring a [Handle] via [New] or
// [Handle.Set]. A failing option returns a *result.Error of kind
// InvalidArgument.
type Option func(*Handle) error

// WithURL sets the transfer target. Syntax is checked when the transfer
// runs, so a malformed URL completes as result.MalformedURL.
func WithURL(u string) Option {
	return func(h *Handle) error {
		if u == "" {
			return invalidArgument("url must not be empty")
		}
		h.easy.URL = u
		return nil
	}
}

// WithMethod overrides the request method.
func WithMethod(method string) Option {
	return func(h *Handle) error {
		if method == "" {
			return invalidArgument("method must not be empty")
		}
		h.easy.Method = method
		return nil
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(h *Handle) error {
		if key == "" {
			return invalidArgument("header key must not be empty")
		}
		h.easy.Header.Add(key, value)
		return nil
	}
}

// WithHeaders replaces all request headers.
func WithHeaders(headers http.Header) Option {
	return func(h *Handle) error {
		h.easy.Header = headers.Clone()
		if h.easy.Header == nil {
			h.easy.Header = make(http.Header)
		}
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(h *Handle) error {
		h.easy.UserAgent = ua
		return nil
	}
}

// WithTimeout bounds the whole transfer; 0 means no limit.
func WithTimeout(d time.Duration) Option {
	return func(h *Handle) error {
		if d < 0 {
			return invalidArgument("timeout must not be negative")
		}
		h.easy.Timeout = d
		return nil
	}
}

// WithConnectTimeout bounds connection setup; 0 means no limit.
func WithConnectTimeout(d time.Duration) Option {
	return func(h *Handle) error {
		if d < 0 {
			return invalidArgument("connect timeout must not be negative")
		}
		h.easy.ConnectTimeout = d
		return nil
	}
}

// WithFollowRedirects follows up to max redirects; one more completes
// as result.TooManyRedirects.
func WithFollowRedirects(max int) Option {
	return func(h *Handle) error {
		if max < 0 {
			return invalidArgument("max redirects must not be negative")
		}
		h.easy.NoFollow = false
		h.easy.MaxRedirects = max
		return nil
	}
}

// WithNoFollowRedirects reports redirect responses as they are.
func WithNoFollowRedirects() Option {
	return func(h *Handle) error {
		h.easy.NoFollow = true
		return nil
	}
}

// WithAcceptEncoding advertises enc in the Accept-Encoding header and
// decodes the response to match. An empty enc advertises every supported
// coding (gzip, deflate and zstd). A response in any other coding fails
// with a generic engine error.
func WithAcceptEncoding(enc string) Option {
	return func(h *Handle) error {
		if enc == "" {
			enc = engine.SupportedEncodings
		}
		h.easy.AcceptEncoding = enc
		h.easy.RawEncoding = false
		return nil
	}
}

// WithNoDecompression delivers the body exactly as the server sent it and
// stops net/http from requesting gzip on its own.
func WithNoDecompression() Option {
	return func(h *Handle) error {
		h.easy.AcceptEncoding = ""
		h.easy.RawEncoding = true
		return nil
	}
}

// WithFailOnError turns HTTP status codes >= 400 into failed transfers.
func WithFailOnError() Option {
	return func(h *Handle) error {
		h.easy.FailOnError = true
		return nil
	}
}

// WithProxy routes the transfer through an HTTP proxy URL.
func WithProxy(proxy string) Option {
	return func(h *Handle) error {
		if proxy == "" {
			h.easy.Proxy = ""
			return nil
		}
		u, err := url.Parse(proxy)
		if err != nil || u.Host == "" {
			return invalidArgument("invalid proxy %q", proxy)
		}
		h.easy.Proxy = proxy
		return nil
	}
}

// WithPinnedPublicKey pins the server's public key. pins is a
// ';'-separated list of "sha256//<base64>" hashes; a mismatch completes as
// result.PinnedKeyMismatch.
func WithPinnedPublicKey(pins string) Option {
	return func(h *Handle) error {
		if pins == "" {
			h.easy.PinnedKey = ""
			return nil
		}
		if _, err := engine.ParsePins(pins); err != nil {
			return invalidArgument("pinned public key: %v", err)
		}
		h.easy.PinnedKey = pins
		return nil
	}
}

// WithPostFields sends body as the request payload. The bytes are copied.
func WithPostFields(body []byte) Option {
	return func(h *Handle) error {
		h.easy.PostFields = bytes.Clone(body)
		if h.easy.PostFields == nil {
			h.easy.PostFields = []byte{}
		}
		return nil
	}
}

// WithNoBody requests headers only.
func WithNoBody() Option {
	return func(h *Handle) error {
		h.easy.NoBody = true
		return nil
	}
}

// WithSourceIP binds outgoing connections to a local address.
func WithSourceIP(ip string) Option {
	return func(h *Handle) error {
		if ip != "" && net.ParseIP(ip) == nil {
			return invalidArgument("invalid source address %q", ip)
		}
		h.easy.SourceIP = ip
		return nil
	}
}

// WithWriteBack installs the body callback; nil discards the body.
func WithWriteBack(fn WriteFunc) Option {
	return func(h *Handle) error {
		h.write = fn
		return nil
	}
}

// WithReadBack installs the upload callback with its declared length,
// which may be SizeUnknown. A nil fn removes the upload.
func WithReadBack(fn ReadFunc, length int64) Option {
	return func(h *Handle) error {
		if length < SizeUnknown {
			return invalidArgument("invalid upload length %d", length)
		}
		h.read = fn
		h.readLen = length
		return nil
	}
}

// WithPrivate attaches caller data retrievable with [Handle.Private].
func WithPrivate(v any) Option {
	return func(h *Handle) error {
		h.private = v
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Handle].
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) error {
		if logger == nil {
			return invalidArgument("logger must not be nil")
		}
		h.logger = logger
		return nil
	}
}

// WithShare attaches the handle to s; see [Share.Attach].
func WithShare(s *Share) Option {
	return func(h *Handle) error {
		if s == nil {
			return invalidArgument("share must not be nil")
		}
		return s.Attach(h)
	}
}
