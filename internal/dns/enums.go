package dns

import "fmt"

// DNS header flags and masks (RFC 1035 Section 4.1.1)
//
// The DNS header contains a 16-bit flags field with the following layout:
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA| Z|AD|CD|   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	 15 14 13 12 11 10  9  8  7  6  5  4  3  2  1  0
//
// Header.Read/Write move the flags field as one raw uint16; Header's flag
// accessors (QR, SetQR, AA, ...) read and set bits through these masks.
const (
	QRFlag     uint16 = 0x8000
	OpcodeMask uint16 = 0x7800
	AAFlag     uint16 = 0x0400
	TCFlag     uint16 = 0x0200
	RDFlag     uint16 = 0x0100
	RAFlag     uint16 = 0x0080
	ZFlag      uint16 = 0x0040
	ADFlag     uint16 = 0x0020
	CDFlag     uint16 = 0x0010
	RCodeMask  uint16 = 0x000F
)

// QueryType is the 16-bit DNS record type tag. Conversion to/from its wire
// code is total: any uint16 is a valid QueryType, known or not, so a record
// type this package doesn't decode a payload for still round-trips as its
// numeric code via UnknownRecord.
type QueryType uint16

const (
	TypeA     QueryType = 1
	TypeNS    QueryType = 2
	TypeCNAME QueryType = 5
	TypeSOA   QueryType = 6
	TypePTR   QueryType = 12
	TypeMX    QueryType = 15
	TypeTXT   QueryType = 16
	TypeAAAA  QueryType = 28
	TypeSRV   QueryType = 33
	TypeOPT   QueryType = 41
)

// QueryTypeFromNum converts a wire type code to a QueryType.
func QueryTypeFromNum(num uint16) QueryType { return QueryType(num) }

// Num returns the wire-format numeric code for t.
func (t QueryType) Num() uint16 { return uint16(t) }

// Known reports whether t decodes to a typed payload rather than UnknownRecord.
func (t QueryType) Known() bool {
	switch t {
	case TypeA, TypeNS, TypeCNAME, TypeSOA, TypePTR, TypeMX, TypeTXT, TypeAAAA, TypeSRV, TypeOPT:
		return true
	default:
		return false
	}
}

func (t QueryType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypePTR:
		return "PTR"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSRV:
		return "SRV"
	case TypeOPT:
		return "OPT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// ResultCode is the 4-bit RCODE field of a DNS header.
type ResultCode uint8

const (
	RCodeNoError  ResultCode = 0
	RCodeFormErr  ResultCode = 1
	RCodeServFail ResultCode = 2
	RCodeNXDomain ResultCode = 3
	RCodeNotImp   ResultCode = 4
	RCodeRefused  ResultCode = 5
)

// ResultCodeFromNum maps a wire RCODE to a ResultCode. Unknown codes map
// leniently to NOERROR on parse rather than failing outright; this mirrors
// the acknowledged leniency of the original protocol decoder.
func ResultCodeFromNum(num uint8) ResultCode {
	switch num {
	case 0, 1, 2, 3, 4, 5:
		return ResultCode(num)
	default:
		return RCodeNoError
	}
}

// Num returns the 4-bit wire value of c.
func (c ResultCode) Num() uint8 { return uint8(c) }

func (c ResultCode) String() string {
	switch c {
	case RCodeNoError:
		return "NOERROR"
	case RCodeFormErr:
		return "FORMERR"
	case RCodeServFail:
		return "SERVFAIL"
	case RCodeNXDomain:
		return "NXDOMAIN"
	case RCodeNotImp:
		return "NOTIMP"
	case RCodeRefused:
		return "REFUSED"
	default:
		return fmt.Sprintf("RCODE(%d)", uint8(c))
	}
}
