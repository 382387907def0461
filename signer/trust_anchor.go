package signer

import (
	"fmt"
	"strings"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

// TrustAnchor is the set of keys a validating resolver trusts. It is shared read-only by every resolver of a topology.
type TrustAnchor struct {
	Zone model.FQDN
	// Keys are the key signing keys of the zone
	Keys []*dns.DNSKEY
	// DS are the digests of Keys
	DS []*dns.DS
}

// Records returns the anchor keys as resource records
func (t *TrustAnchor) Records() []dns.RR {
	res := make([]dns.RR, 0, len(t.Keys))

	for _, k := range t.Keys {
		res = append(res, dns.Copy(k))
	}

	return res
}

// DSStrings returns the DS records in presentation format, as used in resolver configuration files
func (t *TrustAnchor) DSStrings() []string {
	res := make([]string, 0, len(t.DS))

	for _, ds := range t.DS {
		res = append(res, ds.String())
	}

	return res
}

// KeyStrings returns the anchor keys in presentation format
func (t *TrustAnchor) KeyStrings() []string {
	res := make([]string, 0, len(t.Keys))

	for _, k := range t.Keys {
		res = append(res, k.String())
	}

	return res
}

// Matches returns true if key is one of the anchor keys or its digest is one of the anchor DS records
func (t *TrustAnchor) Matches(key *dns.DNSKEY) bool {
	if !model.FQDN(dns.CanonicalName(key.Hdr.Name)).Equal(t.Zone.String()) {
		return false
	}

	for _, k := range t.Keys {
		if k.KeyTag() == key.KeyTag() && k.Algorithm == key.Algorithm && k.PublicKey == key.PublicKey {
			return true
		}
	}

	for _, ds := range t.DS {
		if ds.KeyTag != key.KeyTag() || ds.Algorithm != key.Algorithm {
			continue
		}

		if computed := key.ToDS(ds.DigestType); computed != nil && strings.EqualFold(computed.Digest, ds.Digest) {
			return true
		}
	}

	return false
}

func (t *TrustAnchor) String() string {
	tags := make([]string, 0, len(t.Keys))
	for _, k := range t.Keys {
		tags = append(tags, fmt.Sprint(k.KeyTag()))
	}

	return fmt.Sprintf("trust anchor %s (keys %s)", t.Zone, strings.Join(tags, ", "))
}
