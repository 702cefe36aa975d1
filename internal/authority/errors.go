package authority

import "errors"

var (
	// ErrNotAuthoritative is returned internally when no zone's domain is a
	// suffix of the queried name. It is never surfaced to a DNS client; the
	// caller falls back to the resolver.
	ErrNotAuthoritative = errors.New("no zone is authoritative for this name")

	// ErrInvalidRecord covers record/zone field validation failures, which
	// the HTTP surface reports as 400 FormatError.
	ErrInvalidRecord = errors.New("invalid zone or record")

	// ErrZoneExists is returned by CreateZone when a zone with the same
	// domain already exists.
	ErrZoneExists = errors.New("zone already exists")
)
