package signer

import (
	"sort"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
)

// nsecChain links every authoritative owner name of the zone in canonical order.
// Delegation points list only NS, DS and the DNSSEC types; glue is not part of the chain.
func nsecChain(z *zone.Zone, ttl uint32) []dns.RR {
	var names []model.FQDN

	for _, name := range z.Names() {
		if !z.IsOccluded(name) {
			names = append(names, name)
		}
	}

	chain := make([]dns.RR, 0, len(names))

	for i, name := range names {
		next := names[(i+1)%len(names)]

		chain = append(chain, &dns.NSEC{
			Hdr: dns.RR_Header{
				Name:   name.String(),
				Rrtype: dns.TypeNSEC,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			NextDomain: next.String(),
			TypeBitMap: typeBitmap(z, name),
		})
	}

	return chain
}

func typeBitmap(z *zone.Zone, name model.FQDN) []uint16 {
	cut, _, isCut := z.FindDelegation(name)
	isCut = isCut && cut == name

	types := []uint16{dns.TypeRRSIG, dns.TypeNSEC}

	for _, t := range z.Types(name) {
		if isCut && t != dns.TypeNS && t != dns.TypeDS {
			continue
		}

		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return dedupe(types)
}

func dedupe(sorted []uint16) []uint16 {
	res := sorted[:0]

	for i, t := range sorted {
		if i == 0 || t != sorted[i-1] {
			res = append(res, t)
		}
	}

	return res
}
