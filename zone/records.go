package zone

import (
	"net/netip"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

const (
	soaRefresh = 3600
	soaRetry   = 900
	soaExpire  = 86400
)

// NameServerName returns the host name of the name server of a zone: "ns1." prepended to the origin
func NameServerName(origin model.FQDN) model.FQDN {
	if origin.IsRoot() {
		return "ns1."
	}

	return model.FQDN("ns1." + origin.String())
}

func header(owner model.FQDN, rtype uint16, ttl uint32) dns.RR_Header {
	return dns.RR_Header{Name: owner.String(), Rrtype: rtype, Class: dns.ClassINET, Ttl: ttl}
}

// NewSOA creates the SOA record of a zone
func NewSOA(origin model.FQDN, ttl, minimum uint32) *dns.SOA {
	mbox := "hostmaster." + origin.String()
	if origin.IsRoot() {
		mbox = "hostmaster."
	}

	return &dns.SOA{
		Hdr:     header(origin, dns.TypeSOA, ttl),
		Ns:      NameServerName(origin).String(),
		Mbox:    mbox,
		Serial:  1,
		Refresh: soaRefresh,
		Retry:   soaRetry,
		Expire:  soaExpire,
		Minttl:  minimum,
	}
}

// NewNS creates a NS record
func NewNS(owner, target model.FQDN, ttl uint32) *dns.NS {
	return &dns.NS{Hdr: header(owner, dns.TypeNS, ttl), Ns: target.String()}
}

// NewAddress creates an A or AAAA record depending on the address family
func NewAddress(owner model.FQDN, addr netip.Addr, ttl uint32) dns.RR {
	if addr.Is4() {
		return &dns.A{Hdr: header(owner, dns.TypeA, ttl), A: addr.AsSlice()}
	}

	return &dns.AAAA{Hdr: header(owner, dns.TypeAAAA, ttl), AAAA: addr.AsSlice()}
}

// NewApex creates a zone with SOA, apex NS and the address of its name server
func NewApex(origin model.FQDN, nsAddr netip.Addr, ttl, minimum uint32) (*Zone, error) {
	z := New(origin)

	nsName := NameServerName(origin)

	err := z.Add(
		NewSOA(origin, ttl, minimum),
		NewNS(origin, nsName, ttl),
		NewAddress(nsName, nsAddr, ttl),
	)
	if err != nil {
		return nil, err
	}

	return z, nil
}

// Delegate adds the NS and glue records for a child zone
func (z *Zone) Delegate(child model.FQDN, nsAddr netip.Addr, ttl uint32) error {
	nsName := NameServerName(child)

	return z.Add(
		NewNS(child, nsName, ttl),
		NewAddress(nsName, nsAddr, ttl),
	)
}
