package transfer

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/adamwoolhether/xfer/internal/engine"
)

// Category is a class of state a Share can hold.
type Category uint8

const (
	ShareCookie Category = iota + 1
	ShareDNS
	ShareTLSSession
	ShareConnection
	SharePSL
)

const numCategories = 5

func (c Category) valid() bool {
	return c >= ShareCookie && c <= SharePSL
}

func (c Category) String() string {
	switch c {
	case ShareCookie:
		return "cookie"
	case ShareDNS:
		return "dns"
	case ShareTLSSession:
		return "tls_session"
	case ShareConnection:
		return "connection"
	case SharePSL:
		return "psl"
	default:
		return "category(?)"
	}
}

// Share holds state that several handles, possibly on different
// schedulers and goroutines, use together: cookies, a DNS cache, TLS
// sessions, a connection pool and the public suffix list.
//
// Every access to a category's state goes through the share's lock pair.
// The default pair is a built-in reader/writer lock per category;
// [Share.SetLock] installs the caller's own.
type Share struct {
	mu       sync.Mutex
	enabled  [numCategories]bool
	attached map[*Handle]struct{}
	lockFn   LockFunc
	unlockFn UnlockFunc
	closed   bool
	logger   *slog.Logger

	jar      *cookiejar.Jar
	dns      *dnsCache
	sessions tls.ClientSessionCache
	pool     *engine.Pool

	cookies    *shareJar
	resolver   *shareResolver
	tlsCache   *shareSessions
	transports *shareTransports
}

// ShareOption is a functional option for [NewShare].
type ShareOption func(*shareOptions) error

type shareOptions struct {
	logger      *slog.Logger
	dnsTTL      time.Duration
	lookup      func(ctx context.Context, host string) ([]string, error)
	sessionSize int
	tlsConfig   *tls.Config
	multiplex   int
}

// WithShareLogger injects a custom [slog.Logger] into the [Share].
func WithShareLogger(logger *slog.Logger) ShareOption {
	return func(o *shareOptions) error {
		if logger == nil {
			return invalidArgument("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithDNSTTL sets how long shared DNS answers are reused.
func WithDNSTTL(d time.Duration) ShareOption {
	return func(o *shareOptions) error {
		if d <= 0 {
			return invalidArgument("dns ttl must be positive")
		}
		o.dnsTTL = d
		return nil
	}
}

// WithLookupFunc replaces the system resolver behind the shared DNS cache.
func WithLookupFunc(fn func(ctx context.Context, host string) ([]string, error)) ShareOption {
	return func(o *shareOptions) error {
		if fn == nil {
			return invalidArgument("lookup func must not be nil")
		}
		o.lookup = fn
		return nil
	}
}

// WithSessionCacheSize sets the capacity of the shared TLS session cache.
func WithSessionCacheSize(n int) ShareOption {
	return func(o *shareOptions) error {
		if n <= 0 {
			return invalidArgument("session cache size must be positive")
		}
		o.sessionSize = n
		return nil
	}
}

// WithShareTLSConfig sets the base TLS configuration of the shared
// connection pool.
func WithShareTLSConfig(cfg *tls.Config) ShareOption {
	return func(o *shareOptions) error {
		if cfg == nil {
			return invalidArgument("tls config must not be nil")
		}
		o.tlsConfig = cfg.Clone()
		return nil
	}
}

// WithShareMultiplexing allows up to streams HTTP/2 streams per shared
// connection.
func WithShareMultiplexing(streams int) ShareOption {
	return func(o *shareOptions) error {
		if streams <= 0 {
			return invalidArgument("streams must be positive, got %d", streams)
		}
		o.multiplex = streams
		return nil
	}
}

// NewShare constructs a Share with every category disabled.
func NewShare(optFns ...ShareOption) (*Share, error) {
	opts := shareOptions{
		logger: slog.Default(),
		dnsTTL: defaultDNSTTL,
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, err
		}
	}

	s := &Share{
		attached: make(map[*Handle]struct{}),
		logger:   opts.logger,
		dns:      newDNSCache(opts.dnsTTL, opts.lookup),
		sessions: tls.NewLRUClientSessionCache(opts.sessionSize),
		pool: engine.NewPool(engine.PoolConfig{
			TLSConfig: opts.tlsConfig,
			Multiplex: opts.multiplex,
		}),
	}
	s.useBuiltinLocks()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: &sharePSL{s: s}})
	if err != nil {
		return nil, genericError("creating cookie jar: %v", err)
	}
	s.jar = jar

	s.cookies = &shareJar{s: s}
	s.resolver = &shareResolver{s: s}
	s.tlsCache = &shareSessions{s: s}
	s.transports = &shareTransports{s: s}

	return s, nil
}

// Enable starts sharing cat. Unknown categories report false without
// error. Changing categories while an attached handle is in flight is an
// InvalidArgument error.
func (s *Share) Enable(cat Category) (bool, error) {
	if !cat.valid() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return false, err
	}
	s.enabled[cat-1] = true

	s.logger.Info("share category enabled", "category", cat)

	return true, nil
}

// Disable stops sharing cat. The held state is kept and reused if cat is
// enabled again.
func (s *Share) Disable(cat Category) error {
	if !cat.valid() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.enabled[cat-1] = false

	if cat == ShareConnection {
		s.pool.CloseIdleConnections()
	}

	s.logger.Info("share category disabled", "category", cat)

	return nil
}

// Enabled reports whether cat is shared.
func (s *Share) Enabled(cat Category) bool {
	if !cat.valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled[cat-1]
}

// SetLock installs the lock pair guarding every category access. Both
// functions are required; unlock releases either mode.
func (s *Share) SetLock(lock LockFunc, unlock UnlockFunc) error {
	if lock == nil || unlock == nil {
		return invalidArgument("lock and unlock must both be set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.lockFn, s.unlockFn = lock, unlock

	return nil
}

// UseSharedMutex restores the built-in reader/writer lock per category.
func (s *Share) UseSharedMutex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.useBuiltinLocks()

	return nil
}

func (s *Share) useBuiltinLocks() {
	l := newCategoryLocks()
	s.lockFn, s.unlockFn = l.lock, l.unlock
}

// Attach makes h use the share's enabled categories on its next transfer.
func (s *Share) Attach(h *Handle) error {
	if h == nil {
		return invalidArgument("handle must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return invalidArgument("share is closed")
	case h.closed:
		return invalidArgument("handle %s is closed", h.id)
	case h.share == s:
		return nil
	case h.share != nil:
		return invalidArgument("handle %s is attached to another share", h.id)
	case h.busy.Load():
		return invalidArgument("handle %s is in flight", h.id)
	}

	h.share = s
	s.attached[h] = struct{}{}

	return nil
}

// Detach stops h from using the share.
func (s *Share) Detach(h *Handle) error {
	if h == nil {
		return invalidArgument("handle must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attached[h]; !ok {
		return invalidArgument("handle %s is not attached", h.id)
	}
	if h.busy.Load() {
		return invalidArgument("handle %s is in flight", h.id)
	}

	delete(s.attached, h)
	h.share = nil

	return nil
}

// Close releases the share. It fails while handles are attached.
func (s *Share) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if n := len(s.attached); n > 0 {
		return invalidArgument("share still has %d attached handles", n)
	}

	s.closed = true
	s.pool.CloseIdleConnections()

	return nil
}

func (s *Share) mutableLocked() error {
	if s.closed {
		return invalidArgument("share is closed")
	}
	for h := range s.attached {
		if h.busy.Load() {
			return invalidArgument("share in use: handle %s is in flight", h.id)
		}
	}

	return nil
}

// apply points env at the enabled categories.
func (s *Share) apply(env *engine.Env) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled[ShareCookie-1] {
		env.Jar = s.cookies
	}
	if s.enabled[ShareDNS-1] {
		env.Resolver = s.resolver
	}
	if s.enabled[ShareTLSSession-1] {
		env.Sessions = s.tlsCache
	}
	if s.enabled[ShareConnection-1] {
		env.Transports = s.transports
	}
}

func (s *Share) lock(cat Category, mode LockMode) {
	s.mu.Lock()
	fn := s.lockFn
	s.mu.Unlock()

	fn(cat, mode)
}

func (s *Share) unlock(cat Category) {
	s.mu.Lock()
	fn := s.unlockFn
	s.mu.Unlock()

	fn(cat)
}

// shareJar guards the shared cookie jar.
type shareJar struct {
	s *Share
}

func (j *shareJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.s.lock(ShareCookie, LockExclusive)
	defer j.s.unlock(ShareCookie)

	j.s.jar.SetCookies(u, cookies)
}

func (j *shareJar) Cookies(u *url.URL) []*http.Cookie {
	j.s.lock(ShareCookie, LockShared)
	defer j.s.unlock(ShareCookie)

	return j.s.jar.Cookies(u)
}

// sharePSL consults the public suffix list when PSL sharing is enabled,
// and otherwise treats the last label as the suffix.
type sharePSL struct {
	s *Share
}

func (p *sharePSL) PublicSuffix(domain string) string {
	if !p.s.Enabled(SharePSL) {
		if i := strings.LastIndexByte(domain, '.'); i >= 0 {
			return domain[i+1:]
		}
		return domain
	}

	p.s.lock(SharePSL, LockShared)
	defer p.s.unlock(SharePSL)

	return publicsuffix.List.PublicSuffix(domain)
}

func (p *sharePSL) String() string {
	return "xfer share: " + publicsuffix.List.String()
}

// shareSessions guards the shared TLS session cache.
type shareSessions struct {
	s *Share
}

func (c *shareSessions) Get(key string) (*tls.ClientSessionState, bool) {
	c.s.lock(ShareTLSSession, LockExclusive)
	defer c.s.unlock(ShareTLSSession)

	return c.s.sessions.Get(key)
}

func (c *shareSessions) Put(key string, cs *tls.ClientSessionState) {
	c.s.lock(ShareTLSSession, LockExclusive)
	defer c.s.unlock(ShareTLSSession)

	c.s.sessions.Put(key, cs)
}

// shareTransports guards the shared connection pool.
type shareTransports struct {
	s *Share
}

func (t *shareTransports) Transport(p engine.Profile) (*http.Transport, error) {
	t.s.lock(ShareConnection, LockExclusive)
	defer t.s.unlock(ShareConnection)

	return t.s.pool.Transport(p)
}
