package record

import (
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

// Record is a decoded resource record
type Record interface {
	Name() model.FQDN
	Type() dns.Type
	TTL() uint32
	// RR returns the wire representation
	RR() dns.RR
	String() string
}

type base struct {
	rr dns.RR
}

func (b base) Name() model.FQDN {
	return model.FQDN(dns.CanonicalName(b.rr.Header().Name))
}

func (b base) Type() dns.Type {
	return dns.Type(b.rr.Header().Rrtype)
}

func (b base) TTL() uint32 {
	return b.rr.Header().Ttl
}

func (b base) RR() dns.RR {
	return b.rr
}

func (b base) String() string {
	return b.rr.String()
}

// A is an IPv4 address record
type A struct {
	base
	Addr netip.Addr
}

// AAAA is an IPv6 address record
type AAAA struct {
	base
	Addr netip.Addr
}

// NS delegates a zone to a name server
type NS struct {
	base
	NameServer model.FQDN
}

// CNAME is an alias
type CNAME struct {
	base
	Target model.FQDN
}

// SOA is the start of authority of a zone
type SOA struct {
	base
	MName   model.FQDN
	Serial  uint32
	Minimum uint32
}

// DS is a delegation signer record, owned by the child zone but served by the parent
type DS struct {
	base
	Zone       model.FQDN
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     string
}

// DNSKEY is a public zone key
type DNSKEY struct {
	base
	Flags     uint16
	Algorithm uint8
	KeyTag    uint16
}

// IsKSK returns true for keys with the secure entry point flag
func (k DNSKEY) IsKSK() bool {
	return k.Flags&dns.SEP != 0
}

// RRSIG is a signature over one RRset
type RRSIG struct {
	base
	TypeCovered dns.Type
	Algorithm   uint8
	Labels      uint8
	SignerName  model.FQDN
	KeyTag      uint16
	Inception   time.Time
	Expiration  time.Time
}

// NSEC proves the non-existence of names and types
type NSEC struct {
	base
	NextDomain model.FQDN
	Types      []dns.Type
}

// Covers returns true if the record type is listed in the bitmap
func (n NSEC) Covers(t dns.Type) bool {
	for _, c := range n.Types {
		if c == t {
			return true
		}
	}

	return false
}

// Unknown is any record type without a decoded representation
type Unknown struct {
	base
}

// FromRR decodes a resource record. It returns nil for nil input.
func FromRR(rr dns.RR) Record {
	if rr == nil {
		return nil
	}

	b := base{rr: rr}

	switch v := rr.(type) {
	case *dns.A:
		addr, _ := netip.AddrFromSlice(v.A.To4())

		return A{base: b, Addr: addr}
	case *dns.AAAA:
		addr, _ := netip.AddrFromSlice(v.AAAA)

		return AAAA{base: b, Addr: addr}
	case *dns.NS:
		return NS{base: b, NameServer: model.FQDN(dns.CanonicalName(v.Ns))}
	case *dns.CNAME:
		return CNAME{base: b, Target: model.FQDN(dns.CanonicalName(v.Target))}
	case *dns.SOA:
		return SOA{base: b, MName: model.FQDN(dns.CanonicalName(v.Ns)), Serial: v.Serial, Minimum: v.Minttl}
	case *dns.DS:
		return DS{
			base:       b,
			Zone:       model.FQDN(dns.CanonicalName(v.Hdr.Name)),
			KeyTag:     v.KeyTag,
			Algorithm:  v.Algorithm,
			DigestType: v.DigestType,
			Digest:     v.Digest,
		}
	case *dns.DNSKEY:
		return DNSKEY{base: b, Flags: v.Flags, Algorithm: v.Algorithm, KeyTag: v.KeyTag()}
	case *dns.RRSIG:
		return RRSIG{
			base:        b,
			TypeCovered: dns.Type(v.TypeCovered),
			Algorithm:   v.Algorithm,
			Labels:      v.Labels,
			SignerName:  model.FQDN(dns.CanonicalName(v.SignerName)),
			KeyTag:      v.KeyTag,
			Inception:   time.Unix(int64(v.Inception), 0).UTC(),
			Expiration:  time.Unix(int64(v.Expiration), 0).UTC(),
		}
	case *dns.NSEC:
		types := make([]dns.Type, 0, len(v.TypeBitMap))
		for _, t := range v.TypeBitMap {
			types = append(types, dns.Type(t))
		}

		return NSEC{base: b, NextDomain: model.FQDN(dns.CanonicalName(v.NextDomain)), Types: types}
	}

	return Unknown{base: b}
}

// FromRRs decodes a record section
func FromRRs(rrs []dns.RR) []Record {
	res := make([]Record, 0, len(rrs))

	for _, rr := range rrs {
		if rr.Header().Rrtype == dns.TypeOPT {
			continue
		}

		res = append(res, FromRR(rr))
	}

	return res
}

// OfType returns all records of the concrete type T
func OfType[T Record](records []Record) []T {
	var res []T

	for _, r := range records {
		if t, ok := r.(T); ok {
			res = append(res, t)
		}
	}

	return res
}
