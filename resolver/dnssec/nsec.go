package dnssec

// This file contains NSEC-based denial of existence validation per RFC 4035 §5.4.

import (
	"slices"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

// validateNSECNXDOMAIN validates the NSEC proof for NXDOMAIN: one NSEC covers the name
// and one covers the wildcard at its closest encloser
func (v *Validator) validateNSECNXDOMAIN(nsecRecords []*dns.NSEC, qname string) ValidationResult {
	name, err := model.NewFQDN(qname)
	if err != nil {
		return ValidationResultBogus
	}

	covering := findCoveringNSEC(nsecRecords, name)
	if covering == nil {
		v.logger.Warnf("No NSEC record covers NXDOMAIN for %s", name)

		return ValidationResultBogus
	}

	v.logger.Debugf("NSEC covers NXDOMAIN for %s: %s -> %s", name, covering.Hdr.Name, covering.NextDomain)

	wildcard := wildcardOf(closestEncloser(covering, name))

	if findCoveringNSEC(nsecRecords, wildcard) == nil {
		v.logger.Warnf("No NSEC record proves the absence of wildcard %s", wildcard)

		return ValidationResultBogus
	}

	return ValidationResultSecure
}

// validateNSECNODATA validates the NSEC proof for NODATA
func (v *Validator) validateNSECNODATA(nsecRecords []*dns.NSEC, qname string, qtype uint16) ValidationResult {
	name, err := model.NewFQDN(qname)
	if err != nil {
		return ValidationResultBogus
	}

	for _, nsec := range nsecRecords {
		if !name.Equal(nsec.Hdr.Name) {
			continue
		}

		if nsecHasType(nsec, qtype) || nsecHasType(nsec, dns.TypeCNAME) {
			v.logger.Warnf("NSEC at %s claims type %s exists but no answer returned", name, dns.Type(qtype))

			return ValidationResultBogus
		}

		v.logger.Debugf("NSEC proves NODATA for %s type %s", name, dns.Type(qtype))

		return ValidationResultSecure
	}

	// empty non-terminal: the name exists only because names below it do (RFC 4035 §3.1.3.2)
	for _, nsec := range nsecRecords {
		next, err := model.NewFQDN(nsec.NextDomain)
		if err == nil && nsecCoversName(nsec, name) && next.IsStrictSubdomainOf(name) {
			v.logger.Debugf("NSEC proves NODATA for empty non-terminal %s", name)

			return ValidationResultSecure
		}
	}

	v.logger.Warnf("No matching NSEC record found for NODATA proof: %s", name)

	return ValidationResultBogus
}

// validateNSECNoDS validates the proof of an unsigned delegation: the NSEC at the cut
// has the NS bit but neither DS nor SOA (RFC 4035 §5.2)
func validateNSECNoDS(nsecRecords []*dns.NSEC, zone model.FQDN) bool {
	for _, nsec := range nsecRecords {
		if zone.Equal(nsec.Hdr.Name) {
			return nsecHasType(nsec, dns.TypeNS) &&
				!nsecHasType(nsec, dns.TypeDS) &&
				!nsecHasType(nsec, dns.TypeSOA)
		}
	}

	return false
}

// findCoveringNSEC returns the NSEC record covering name
func findCoveringNSEC(nsecRecords []*dns.NSEC, name model.FQDN) *dns.NSEC {
	for _, nsec := range nsecRecords {
		if nsecCoversName(nsec, name) {
			return nsec
		}
	}

	return nil
}

// nsecCoversName checks if name sorts strictly between owner and next name of the NSEC record
// in canonical order (RFC 4034 §4.1). The last NSEC of a zone wraps around to the apex.
func nsecCoversName(nsec *dns.NSEC, name model.FQDN) bool {
	owner := nsec.Hdr.Name
	next := nsec.NextDomain

	afterOwner := model.CanonicalCompare(name.String(), owner) > 0
	beforeNext := model.CanonicalCompare(name.String(), next) < 0

	if model.CanonicalCompare(owner, next) < 0 {
		return afterOwner && beforeNext
	}

	return afterOwner || beforeNext
}

// closestEncloser returns the closest ancestor of name that provably exists,
// derived from the NSEC record covering name (RFC 5155 §7.2.1 applied to NSEC)
func closestEncloser(covering *dns.NSEC, name model.FQDN) model.FQDN {
	owner := model.FQDN(dns.CanonicalName(covering.Hdr.Name))
	next := model.FQDN(dns.CanonicalName(covering.NextDomain))

	for _, ancestor := range name.Ancestors() {
		if owner.IsSubdomainOf(ancestor) || next.IsSubdomainOf(ancestor) {
			return ancestor
		}
	}

	return model.Root
}

func wildcardOf(name model.FQDN) model.FQDN {
	if name.IsRoot() {
		return "*."
	}

	return model.FQDN("*." + name.String())
}

// nsecHasType checks if an NSEC record claims a given type exists
func nsecHasType(nsec *dns.NSEC, qtype uint16) bool {
	return slices.Contains(nsec.TypeBitMap, qtype)
}
