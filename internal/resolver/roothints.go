package resolver

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultRootHints is the standard 13-server root hints list (a.root-servers.net
// through m.root-servers.net), used when no override file is configured.
// spec.md documents a single hard-coded root constant as its minimal form;
// this is the "real implementation carries the full root hints list"
// supplement it calls for.
var DefaultRootHints = []string{
	"198.41.0.4",     // a.root-servers.net
	"199.9.14.201",   // b.root-servers.net
	"192.33.4.12",    // c.root-servers.net
	"199.7.91.13",    // d.root-servers.net
	"192.203.230.10", // e.root-servers.net
	"192.5.5.241",    // f.root-servers.net
	"192.112.36.4",   // g.root-servers.net
	"198.97.190.53",  // h.root-servers.net
	"192.36.148.17",  // i.root-servers.net
	"192.58.128.30",  // j.root-servers.net
	"193.0.14.129",   // k.root-servers.net
	"199.7.83.42",    // l.root-servers.net
	"202.12.27.33",   // m.root-servers.net
}

// LoadRootHints reads a JSON file containing a flat array of IPv4 addresses,
// for operators who want to pin or override the compiled-in list.
func LoadRootHints(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root hints file: %w", err)
	}
	var hints []string
	if err := json.Unmarshal(data, &hints); err != nil {
		return nil, fmt.Errorf("parse root hints file: %w", err)
	}
	if len(hints) == 0 {
		return nil, fmt.Errorf("root hints file %s contains no addresses", path)
	}
	return hints, nil
}
