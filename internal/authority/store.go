// Package authority implements the authoritative zone store: an in-memory
// collection of zones guarded by a reader/writer lock so query-time reads
// never block each other, backed by a SQLite database for durability.
package authority

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/watchtowerdns/watchtower/internal/dns"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the thread-shared zone table. Reads (Query, GetZone, Zones) take
// the read lock and never block each other; Save/CreateZone/AddRecord take
// the write lock, which is held only long enough to mutate the in-memory
// map and persist it.
type Store struct {
	mu     sync.RWMutex
	zones  map[string]*Zone // normalized domain -> zone
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending schema migrations, and loads any existing zones into memory.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open zone database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate zone database: %w", err)
	}

	s := &Store{zones: make(map[string]*Zone), db: db, logger: logger}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load zones: %w", err)
	}
	return s, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT domain, mname, rname, serial, refresh, retry, expire, minimum FROM zones`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		z := &Zone{}
		if err := rows.Scan(&z.Domain, &z.MName, &z.RName, &z.Serial, &z.Refresh, &z.Retry, &z.Expire, &z.Minimum); err != nil {
			return err
		}
		s.zones[z.Domain] = z
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, z := range s.zones {
		recRows, err := s.db.Query(`SELECT rtype, domain, ttl, host FROM records WHERE zone_domain = ?`, z.Domain)
		if err != nil {
			return err
		}
		for recRows.Next() {
			var rtype uint16
			var r Record
			if err := recRows.Scan(&rtype, &r.Domain, &r.TTL, &r.Host); err != nil {
				recRows.Close()
				return err
			}
			r.Type = dns.QueryTypeFromNum(rtype)
			z.Records = append(z.Records, r)
		}
		if err := recRows.Err(); err != nil {
			recRows.Close()
			return err
		}
		recRows.Close()
	}
	return nil
}

// Zones returns a snapshot of every zone, for the management surface.
func (s *Store) Zones() []*Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	return out
}

// GetZone returns the zone whose domain is the longest suffix of name, or
// nil if none matches.
func (s *Store) GetZone(name string) *Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getZoneLocked(name)
}

func (s *Store) getZoneLocked(name string) *Zone {
	q := dns.NormalizeName(name)
	var best *Zone
	for domain, z := range s.zones {
		if domain == q || strings.HasSuffix(q, "."+domain) {
			if best == nil || len(domain) > len(best.Domain) {
				best = z
			}
		}
	}
	return best
}

// CreateZone registers a new zone and persists the table, failing with
// ErrZoneExists if a zone with the same domain already exists.
func (s *Store) CreateZone(z *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.zones[z.Domain]; exists {
		return ErrZoneExists
	}
	s.zones[z.Domain] = z
	if err := s.saveLocked(); err != nil {
		delete(s.zones, z.Domain)
		return err
	}
	return nil
}

// AddRecord appends a validated record to the zone named domain and
// persists the table.
func (s *Store) AddRecord(domain string, recordType dns.QueryType, owner, host string, ttl uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.zones[dns.NormalizeName(domain)]
	if !ok {
		return ErrNotAuthoritative
	}
	before := len(z.Records)
	if err := z.AddRecord(recordType, owner, host, ttl); err != nil {
		return err
	}
	if err := s.saveLocked(); err != nil {
		z.Records = z.Records[:before]
		return err
	}
	return nil
}

// Save persists the current in-memory zone table to the database.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked rewrites the zones and records tables from the in-memory map
// inside a single transaction: readers of the database never observe a
// half-written table, the same atomicity guarantee spec.md asks of a
// write-temp-then-rename flat file, provided by SQLite's transaction log
// instead.
func (s *Store) saveLocked() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM zones`); err != nil {
		return err
	}

	for _, z := range s.zones {
		_, err := tx.Exec(
			`INSERT INTO zones (domain, mname, rname, serial, refresh, retry, expire, minimum) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			z.Domain, z.MName, z.RName, z.Serial, z.Refresh, z.Retry, z.Expire, z.Minimum,
		)
		if err != nil {
			return err
		}
		for _, r := range z.Records {
			_, err := tx.Exec(
				`INSERT INTO records (zone_domain, rtype, domain, ttl, host) VALUES (?, ?, ?, ?, ?)`,
				z.Domain, r.Type.Num(), r.Domain, r.TTL, r.Host,
			)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// QueryResult is the authority's half of a DNS response, built by Query.
type QueryResult struct {
	Matched     bool // a zone's domain was a suffix of qname
	Answers     []dns.ResourceRecord
	Authorities []dns.ResourceRecord
	RCode       dns.ResultCode
}

// Query constructs the authority's half of a DNS response for (qname,
// qtype). If no zone's domain is a suffix of qname, Matched is false and
// the caller should fall back to the resolver. If a zone matches but no
// record answers the question, the result carries NXDOMAIN with the
// zone's SOA in the authority section.
func (s *Store) Query(qname string, qtype dns.QueryType) (QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	z := s.getZoneLocked(qname)
	if z == nil {
		return QueryResult{Matched: false}, nil
	}

	qn := dns.NormalizeName(qname)
	var answers []dns.ResourceRecord
	for _, r := range z.Records {
		if r.Domain != qn {
			continue
		}
		if r.Type != qtype && r.Type != dns.TypeCNAME {
			continue
		}
		rr, err := recordToRR(r)
		if err != nil {
			return QueryResult{}, err
		}
		answers = append(answers, rr)
	}

	authorities := []dns.ResourceRecord{z.NSRecord(), z.SOARecord()}
	if len(answers) == 0 {
		return QueryResult{Matched: true, Authorities: authorities, RCode: dns.RCodeNXDomain}, nil
	}
	return QueryResult{Matched: true, Answers: answers, Authorities: authorities, RCode: dns.RCodeNoError}, nil
}
