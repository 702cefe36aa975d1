// Package cache implements the resolver's domain-scoped record cache: a
// thread-shared map from domain to its live records, with lazy,
// read-time expiry. It intentionally carries none of an LRU cache's
// eviction bookkeeping or negative-caching entry types — the workload here
// is small enough that a single mutex around a plain map is sufficient.
package cache

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/watchtowerdns/watchtower/internal/dns"
)

type entry struct {
	rec       dns.ResourceRecord
	expiresAt time.Time
}

type domainEntry struct {
	records map[string]*entry
	hits    uint64
	updates uint64
}

// DomainStats is a point-in-time snapshot of one domain's cache activity,
// returned by List for the management surface.
type DomainStats struct {
	Domain  string
	Hits    uint64
	Updates uint64
	Records []dns.ResourceRecord
}

// Cache is a mutex-guarded, TTL-scoped map from domain to its records.
type Cache struct {
	mu       sync.Mutex
	domains  map[string]*domainEntry
	disabled bool
}

// New returns an empty, enabled Cache.
func New() *Cache {
	return &Cache{domains: make(map[string]*domainEntry)}
}

// NewWithEnabled returns a Cache that silently discards Store calls and
// always misses on Lookup when enabled is false, for the cache.enabled
// configuration toggle.
func NewWithEnabled(enabled bool) *Cache {
	return &Cache{domains: make(map[string]*domainEntry), disabled: !enabled}
}

// Lookup returns every live record for (qname, qtype), incrementing the
// domain's hits counter. A record is live when now is before its expiry;
// expired records are dropped from the domain on this call rather than
// reaped by a background task.
func (c *Cache) Lookup(qname string, qtype dns.QueryType) []dns.ResourceRecord {
	if c.disabled {
		return nil
	}
	key := dns.NormalizeName(qname)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.domains[key]
	if !ok {
		return nil
	}
	d.hits++

	var out []dns.ResourceRecord
	for k, e := range d.records {
		if !now.Before(e.expiresAt) {
			delete(d.records, k)
			continue
		}
		if e.rec.QueryType() == qtype {
			out = append(out, e.rec)
		}
	}
	return out
}

// Store inserts a batch of records, merging each into its domain's entry
// and replacing any existing record with the same (type, payload) tuple,
// resetting its expiry to now+ttl. Each distinct domain touched by this
// batch has its updates counter incremented once, regardless of how many
// of its records were in the batch.
func (c *Cache) Store(records []dns.ResourceRecord) {
	if c.disabled || len(records) == 0 {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[string]bool)
	for _, rr := range records {
		domain, ok := cacheableDomain(rr)
		if !ok {
			continue
		}
		key := dns.NormalizeName(domain)

		d, ok := c.domains[key]
		if !ok {
			d = &domainEntry{records: make(map[string]*entry)}
			c.domains[key] = d
		}
		d.records[recordKey(rr)] = &entry{
			rec:       rr,
			expiresAt: now.Add(time.Duration(rr.TTL()) * time.Second),
		}
		touched[key] = true
	}
	for key := range touched {
		c.domains[key].updates++
	}
}

// List returns a snapshot of per-domain statistics and currently live
// entries, for the management surface.
func (c *Cache) List() []DomainStats {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]DomainStats, 0, len(c.domains))
	for domain, d := range c.domains {
		stats := DomainStats{Domain: domain, Hits: d.hits, Updates: d.updates}
		for _, e := range d.records {
			if now.Before(e.expiresAt) {
				stats.Records = append(stats.Records, e.rec)
			}
		}
		out = append(out, stats)
	}
	return out
}

// cacheableDomain returns the domain a record should be filed under, or
// false for records with no meaningful domain (OPT).
func cacheableDomain(rr dns.ResourceRecord) (string, bool) {
	if _, ok := rr.(dns.OPTRecord); ok {
		return "", false
	}
	return rr.Domain(), true
}

// recordKey identifies a record's (type, payload) tuple so a refreshed
// record with the same content replaces rather than duplicates the old one.
func recordKey(rr dns.ResourceRecord) string {
	switch v := rr.(type) {
	case dns.ARecord:
		return fmt.Sprintf("A:%s", ipKey(v.Addr))
	case dns.AAAARecord:
		return fmt.Sprintf("AAAA:%s", ipKey(v.Addr))
	case dns.NSRecord:
		return fmt.Sprintf("NS:%s", dns.NormalizeName(v.Host))
	case dns.CNAMERecord:
		return fmt.Sprintf("CNAME:%s", dns.NormalizeName(v.Target))
	case dns.PTRRecord:
		return fmt.Sprintf("PTR:%s", dns.NormalizeName(v.Target))
	case dns.MXRecord:
		return fmt.Sprintf("MX:%d:%s", v.Priority, dns.NormalizeName(v.Exchange))
	case dns.SRVRecord:
		return fmt.Sprintf("SRV:%d:%d:%d:%s", v.Priority, v.Weight, v.Port, dns.NormalizeName(v.Target))
	case dns.SOARecord:
		return fmt.Sprintf("SOA:%s:%s:%d", dns.NormalizeName(v.MName), dns.NormalizeName(v.RName), v.Serial)
	case dns.TXTRecord:
		return fmt.Sprintf("TXT:%s", v.Text)
	case dns.UnknownRecord:
		return fmt.Sprintf("UNKNOWN(%d)", v.TypeNum)
	default:
		return fmt.Sprintf("%T", rr)
	}
}

func ipKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
