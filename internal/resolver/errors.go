package resolver

import "errors"

var (
	// ErrTimeout is returned by exchange when a hop does not answer within
	// the configured per-hop budget.
	ErrTimeout = errors.New("resolver: hop timed out")

	// ErrExhausted names the iterative loop running out of hops without
	// reaching an answer, NXDOMAIN, or a dead end. Resolve reports that case
	// as a SERVFAIL packet; no function in this package returns this error.
	ErrExhausted = errors.New("resolver: delegation chain exceeded max hops")
)
