package cache_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/dns"
)

func TestStoreThenLookup(t *testing.T) {
	c := cache.New()
	rr := dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")}

	c.Store([]dns.ResourceRecord{rr})
	got := c.Lookup("example.com", dns.TypeA)

	require.Len(t, got, 1)
	a, ok := got[0].(dns.ARecord)
	require.True(t, ok)
	assert.True(t, a.Addr.Equal(net.ParseIP("93.184.216.34")))
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "Example.COM", TTL: 300}, Addr: net.ParseIP("93.184.216.34")},
	})

	got := c.Lookup("example.com", dns.TypeA)
	require.Len(t, got, 1)
}

func TestLookupMissingDomainReturnsNil(t *testing.T) {
	c := cache.New()
	got := c.Lookup("nowhere.example", dns.TypeA)
	assert.Nil(t, got)
}

func TestExpiredRecordsAreFilteredLazily(t *testing.T) {
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 0}, Addr: net.ParseIP("93.184.216.34")},
	})

	time.Sleep(5 * time.Millisecond)
	got := c.Lookup("example.com", dns.TypeA)
	assert.Empty(t, got)
}

func TestStoreReplacesSameTypeAndPayload(t *testing.T) {
	c := cache.New()
	addr := net.ParseIP("93.184.216.34")
	c.Store([]dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: addr}})
	c.Store([]dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 600}, Addr: addr}})

	got := c.Lookup("example.com", dns.TypeA)
	require.Len(t, got, 1, "identical (type, payload) tuples should replace, not accumulate")
}

func TestStoreDistinctPayloadsAccumulate(t *testing.T) {
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")},
		dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.35")},
	})

	got := c.Lookup("example.com", dns.TypeA)
	assert.Len(t, got, 2)
}

func TestListReportsHitsAndUpdates(t *testing.T) {
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")},
	})
	c.Lookup("example.com", dns.TypeA)
	c.Lookup("example.com", dns.TypeA)

	stats := c.List()
	require.Len(t, stats, 1)
	assert.Equal(t, "example.com", stats[0].Domain)
	assert.Equal(t, uint64(1), stats[0].Updates)
	assert.Equal(t, uint64(2), stats[0].Hits)
	assert.Len(t, stats[0].Records, 1)
}

func TestStoreIncrementsUpdatesOncePerCallPerDomain(t *testing.T) {
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")},
		dns.AAAARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("2001:db8::1")},
	})

	stats := c.List()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Updates)
}
