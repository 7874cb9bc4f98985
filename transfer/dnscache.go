package transfer

import (
	"context"
	"net"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultDNSTTL = 60 * time.Second

// dnsLookupTimeout bounds a shared lookup, which outlives any one caller.
const dnsLookupTimeout = 30 * time.Second

type dnsEntry struct {
	addrs   []string
	expires time.Time
}

// dnsCache is a TTL host cache. Its map is guarded by the share's DNS
// lock; concurrent misses for one host collapse into a single lookup.
type dnsCache struct {
	ttl     time.Duration
	lookup  func(ctx context.Context, host string) ([]string, error)
	entries map[string]dnsEntry
	group   singleflight.Group
}

func newDNSCache(ttl time.Duration, lookup func(ctx context.Context, host string) ([]string, error)) *dnsCache {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}

	return &dnsCache{
		ttl:     ttl,
		lookup:  lookup,
		entries: make(map[string]dnsEntry),
	}
}

// shareResolver resolves through the share's DNS cache.
type shareResolver struct {
	s *Share
}

func (r *shareResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	s := r.s
	cache := s.dns

	s.lock(ShareDNS, LockShared)
	e, ok := cache.entries[host]
	s.unlock(ShareDNS)

	if ok && time.Now().Before(e.expires) {
		return slices.Clone(e.addrs), nil
	}

	ch := cache.group.DoChan(host, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dnsLookupTimeout)
		defer cancel()

		addrs, err := cache.lookup(lctx, host)
		if err != nil {
			return nil, err
		}

		s.lock(ShareDNS, LockExclusive)
		cache.entries[host] = dnsEntry{addrs: addrs, expires: time.Now().Add(cache.ttl)}
		s.unlock(ShareDNS)

		return addrs, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
