// Package dns implements the RFC 1035 wire protocol: a random-access packet
// buffer with name compression, and encode/decode for DNS messages.
//
// Standards Compliance:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core DNS protocol)
//   - RFC 1034: Domain Names - Concepts and Facilities (DNS concepts)
//   - RFC 6891: Extension Mechanisms for DNS (OPT pseudo-record pass-through only)
//
// Error Handling:
//
// All wire-format failures are wrapped with fmt.Errorf("...: %w", sentinel)
// against one of the sentinels below, so callers can classify a failure with
// errors.Is without string matching.
package dns

import "errors"

var (
	// ErrBufferEnd covers reads past the end of a buffer and writes beyond
	// a fixed buffer's capacity.
	ErrBufferEnd = errors.New("end of buffer")

	// ErrNameLimit is returned when decompressing a name exceeds the
	// pointer-jump cap, which defends against cyclic compression pointers.
	ErrNameLimit = errors.New("name compression limit exceeded")

	// ErrMalformed covers structurally invalid messages that are neither
	// buffer-bounds nor name-compression failures (bad label lengths, a
	// record whose declared type requires a payload shape it doesn't have).
	ErrMalformed = errors.New("malformed dns message")
)
