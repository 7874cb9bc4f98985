package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// Profile holds the connection-level settings of a transfer. Transfers
// with equal profiles may share connections.
type Profile struct {
	Proxy          string
	SourceIP       string
	PinnedKey      string
	ConnectTimeout time.Duration
	// RawEncoding stops the transport from requesting and decoding gzip.
	RawEncoding bool

	// Resolver and Sessions override the pool's own when set.
	Resolver Resolver
	Sessions tls.ClientSessionCache
}

// Transports hands out a transport suitable for a profile.
type Transports interface {
	Transport(p Profile) (*http.Transport, error)
}

// Resolver looks up a host's addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Resolver replaces the system resolver when set.
	Resolver Resolver
	// SessionCache enables TLS session resumption.
	SessionCache tls.ClientSessionCache
	// Multiplex > 1 forces HTTP/2 and allows that many streams per
	// connection; 1 disables HTTP/2; 0 keeps the net/http default.
	Multiplex int
	// MaxConnsPerHost limits connections per host; 0 is unlimited.
	MaxConnsPerHost int
	// TLSConfig is the base TLS configuration; it is cloned per profile.
	TLSConfig *tls.Config
}

// Pool is a connection cache: one http.Transport per Profile.
type Pool struct {
	mu         sync.Mutex
	cfg        PoolConfig
	transports map[Profile]*http.Transport
}

// NewPool constructs an empty Pool.
func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:        cfg,
		transports: make(map[Profile]*http.Transport),
	}
}

// Transport returns the pool's transport for p, building it on first use.
func (p *Pool) Transport(pr Profile) (*http.Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.transports[pr]; ok {
		return t, nil
	}

	t, err := p.build(pr)
	if err != nil {
		return nil, err
	}
	p.transports[pr] = t

	return t, nil
}

// Len reports the number of distinct transports built so far.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.transports)
}

// CloseIdleConnections closes idle connections on every transport.
func (p *Pool) CloseIdleConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.transports {
		t.CloseIdleConnections()
	}
}

func (p *Pool) build(pr Profile) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   pr.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	if pr.SourceIP != "" {
		ip := net.ParseIP(pr.SourceIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid source address %q", pr.SourceIP)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	var tlsCfg *tls.Config
	if p.cfg.TLSConfig != nil {
		tlsCfg = p.cfg.TLSConfig.Clone()
	} else {
		tlsCfg = &tls.Config{}
	}
	tlsCfg.ClientSessionCache = p.cfg.SessionCache
	if pr.Sessions != nil {
		tlsCfg.ClientSessionCache = pr.Sessions
	}
	if pr.PinnedKey != "" {
		pins, err := ParsePins(pr.PinnedKey)
		if err != nil {
			return nil, err
		}
		tlsCfg.VerifyConnection = verifyPins(pins)
	}

	resolver := p.cfg.Resolver
	if pr.Resolver != nil {
		resolver = pr.Resolver
	}

	t := &http.Transport{
		DialContext:           dialContext(dialer, resolver),
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       p.cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   pr.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    pr.RawEncoding,
	}

	if pr.Proxy != "" {
		u, err := url.Parse(pr.Proxy)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", pr.Proxy)
		}
		t.Proxy = http.ProxyURL(u)
	}

	switch {
	case p.cfg.Multiplex > 1:
		t.ForceAttemptHTTP2 = true
		t2, err := http2.ConfigureTransports(t)
		if err != nil {
			return nil, fmt.Errorf("configuring http2: %w", err)
		}
		t2.StrictMaxConcurrentStreams = true
		t2.ReadIdleTimeout = 30 * time.Second
	case p.cfg.Multiplex == 1:
		t.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	return t, nil
}

// dialContext dials through r when set, trying each resolved address in
// turn.
func dialContext(d *net.Dialer, r Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if r == nil {
		return d.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) != nil {
			return d.DialContext(ctx, network, addr)
		}

		addrs, err := r.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}

		var errs []error
		for _, a := range addrs {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(a, port))
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
		}

		return nil, errors.Join(errs...)
	}
}
