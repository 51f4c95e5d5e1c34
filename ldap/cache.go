package ldap

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Default DN cache tuning. Resolved DNs change rarely; a short TTL keeps
// renames from lingering while sparing the directory a round trip per
// authentication.
const (
	DefaultDNCacheTTL           = 5 * time.Minute
	DefaultDNCachePurgeInterval = 10 * time.Minute
)

// DNCache caches user-identifier to DN mappings for one backend. It is
// safe for concurrent use.
type DNCache struct {
	cache *gocache.Cache
}

// NewDNCache creates a DN cache with the supplied TTL and purge interval.
// Non-positive values fall back to the defaults.
func NewDNCache(ttl, purgeInterval time.Duration) *DNCache {
	if ttl <= 0 {
		ttl = DefaultDNCacheTTL
	}
	if purgeInterval <= 0 {
		purgeInterval = DefaultDNCachePurgeInterval
	}
	return &DNCache{
		cache: gocache.New(ttl, purgeInterval),
	}
}

// Get returns the cached DN for a user identifier.
func (c *DNCache) Get(user string) (string, bool) {
	v, ok := c.cache.Get(user)
	if !ok {
		return "", false
	}
	dn, ok := v.(string)
	return dn, ok
}

// Put caches the DN for a user identifier with the cache's default TTL.
func (c *DNCache) Put(user, dn string) {
	if user == "" || dn == "" {
		return
	}
	c.cache.SetDefault(user, dn)
}

// Evict drops the cached DN for a user identifier.
func (c *DNCache) Evict(user string) {
	c.cache.Delete(user)
}

// Len returns the number of cached mappings, expired entries included.
func (c *DNCache) Len() int {
	return c.cache.ItemCount()
}
