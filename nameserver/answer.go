package nameserver

import (
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
)

const (
	// advertised in OPT records of responses
	ednsUDPSize = 1232

	maxCNAMEChain = 8
)

// Answer builds the authoritative response to req
func (n *NameServer) Answer(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)

	switch {
	case req.Opcode != dns.OpcodeQuery:
		resp.Rcode = dns.RcodeNotImplemented
	case len(req.Question) != 1:
		resp.Rcode = dns.RcodeFormatError
	default:
		a := &answerer{zone: n.Zone(), do: util.IsDNSSECOK(req), resp: resp}
		a.answer(req.Question[0])
	}

	util.EchoEdns0(req, resp, ednsUDPSize)

	return resp
}

// answerer fills one response from the zone
type answerer struct {
	zone *zone.Zone
	do   bool
	resp *dns.Msg
}

func (a *answerer) answer(q dns.Question) {
	if q.Qclass != dns.ClassINET {
		a.resp.Rcode = dns.RcodeRefused

		return
	}

	qname, err := model.NewFQDN(q.Name)
	if err != nil {
		a.resp.Rcode = dns.RcodeFormatError

		return
	}

	if !qname.IsSubdomainOf(a.zone.Origin()) {
		a.resp.Rcode = dns.RcodeRefused

		return
	}

	// the DS RRset of a cut belongs to this side of the delegation
	if cut, ns, ok := a.zone.FindDelegation(qname); ok && !(q.Qtype == dns.TypeDS && cut == qname) {
		a.referral(cut, ns)

		return
	}

	a.authoritative(qname, q.Qtype)
}

func (a *answerer) authoritative(name model.FQDN, qtype uint16) {
	a.resp.Authoritative = true

	for i := 0; i < maxCNAMEChain; i++ {
		if rrs := a.rrset(name, qtype); len(rrs) > 0 {
			a.resp.Answer = append(a.resp.Answer, rrs...)
			a.addGlue(rrs)

			return
		}

		cname := a.zone.Lookup(name, dns.TypeCNAME)
		if len(cname) == 0 || qtype == dns.TypeCNAME {
			a.negative(name)

			return
		}

		a.resp.Answer = append(a.resp.Answer, a.withSignatures(name, cname)...)

		target, err := model.NewFQDN(cname[0].(*dns.CNAME).Target)
		if err != nil || !a.inZone(target) {
			return
		}

		name = target
	}
}

// inZone returns true if target is authoritative data of this zone
func (a *answerer) inZone(target model.FQDN) bool {
	if !target.IsSubdomainOf(a.zone.Origin()) {
		return false
	}

	_, _, delegated := a.zone.FindDelegation(target)

	return !delegated
}

func (a *answerer) rrset(name model.FQDN, qtype uint16) []dns.RR {
	if qtype != dns.TypeANY {
		return a.withSignatures(name, a.zone.Lookup(name, qtype))
	}

	var res []dns.RR

	for _, t := range a.zone.Types(name) {
		if t == dns.TypeRRSIG || (!a.do && util.IsDNSSECType(t)) {
			continue
		}

		res = append(res, a.withSignatures(name, a.zone.Lookup(name, t))...)
	}

	return res
}

// withSignatures appends the RRSIGs covering rrs if the query had the DO bit
func (a *answerer) withSignatures(name model.FQDN, rrs []dns.RR) []dns.RR {
	if len(rrs) == 0 || !a.do {
		return rrs
	}

	covered := rrs[0].Header().Rrtype

	for _, rr := range a.zone.Lookup(name, dns.TypeRRSIG) {
		if sig, ok := rr.(*dns.RRSIG); ok && sig.TypeCovered == covered {
			rrs = append(rrs, sig)
		}
	}

	return rrs
}

func (a *answerer) referral(cut model.FQDN, ns []dns.RR) {
	a.resp.Ns = append(a.resp.Ns, ns...)

	if a.do {
		if ds := a.zone.Lookup(cut, dns.TypeDS); len(ds) > 0 {
			a.resp.Ns = append(a.resp.Ns, a.withSignatures(cut, ds)...)
		} else if nsec := a.zone.Lookup(cut, dns.TypeNSEC); len(nsec) > 0 {
			a.resp.Ns = append(a.resp.Ns, a.withSignatures(cut, nsec)...)
		}
	}

	a.addGlue(ns)
}

// addGlue adds the in-zone addresses of the name servers in rrs to the additional section
func (a *answerer) addGlue(rrs []dns.RR) {
	for _, ns := range util.ExtractRecords[*dns.NS](rrs) {
		target, err := model.NewFQDN(ns.Ns)
		if err != nil || !target.IsSubdomainOf(a.zone.Origin()) {
			continue
		}

		a.resp.Extra = append(a.resp.Extra, a.zone.Lookup(target, dns.TypeA)...)
		a.resp.Extra = append(a.resp.Extra, a.zone.Lookup(target, dns.TypeAAAA)...)
	}
}

// negative answers NODATA or NXDOMAIN for name with the SOA and, for DO queries, the NSEC proof
func (a *answerer) negative(name model.FQDN) {
	exists := a.zone.NameExists(name)
	if !exists {
		a.resp.Rcode = dns.RcodeNameError
	}

	if soa, ok := a.zone.SOA(); ok {
		soa.Hdr.Ttl = min(soa.Hdr.Ttl, soa.Minttl)
		a.resp.Ns = append(a.resp.Ns, a.withSignatures(a.zone.Origin(), []dns.RR{soa})...)
	}

	if !a.do {
		return
	}

	proofs := map[model.FQDN]bool{}

	addProof := func(owner model.FQDN, nsec []dns.RR) {
		if len(nsec) == 0 || proofs[owner] {
			return
		}

		proofs[owner] = true
		a.resp.Ns = append(a.resp.Ns, a.withSignatures(owner, nsec)...)
	}

	if nsec := a.zone.Lookup(name, dns.TypeNSEC); len(nsec) > 0 {
		addProof(name, nsec)

		return
	}

	// empty non-terminal or non-existent name
	addProof(a.coveringNSEC(name))

	if !exists {
		addProof(a.coveringNSEC(wildcardOf(a.closestEncloser(name))))
	}
}

// coveringNSEC returns the NSEC record with the greatest owner canonically before name
func (a *answerer) coveringNSEC(name model.FQDN) (model.FQDN, []dns.RR) {
	var (
		owner model.FQDN
		nsec  []dns.RR
	)

	for _, cur := range a.zone.Names() {
		if model.CanonicalCompare(cur.String(), name.String()) > 0 {
			break
		}

		if rrs := a.zone.Lookup(cur, dns.TypeNSEC); len(rrs) > 0 {
			owner, nsec = cur, rrs
		}
	}

	return owner, nsec
}

func (a *answerer) closestEncloser(name model.FQDN) model.FQDN {
	for _, ancestor := range name.Ancestors() {
		if a.zone.NameExists(ancestor) {
			return ancestor
		}
	}

	return a.zone.Origin()
}

func wildcardOf(name model.FQDN) model.FQDN {
	if name.IsRoot() {
		return "*."
	}

	return model.FQDN("*." + name.String())
}
