package signer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const signerLoggerPrefix = "signer"

// SignedZone is the result of signing a zone
type SignedZone struct {
	// Zone is a signed copy of the input zone
	Zone *zone.Zone
	Keys []*Key
	// DS records of the key signing keys, to be added to the parent zone
	DS []*dns.DS
}

// KSKs returns the key signing keys
func (s *SignedZone) KSKs() []*Key {
	var res []*Key

	for _, k := range s.Keys {
		if k.IsKSK() {
			res = append(res, k)
		}
	}

	return res
}

// TrustAnchor returns the trust anchor a validator needs to trust this zone
func (s *SignedZone) TrustAnchor() *TrustAnchor {
	ta := &TrustAnchor{Zone: s.Zone.Origin()}

	for _, k := range s.KSKs() {
		ta.Keys = append(ta.Keys, dns.Copy(k.DNSKEY).(*dns.DNSKEY))
	}

	for _, ds := range s.DS {
		ta.DS = append(ta.DS, dns.Copy(ds).(*dns.DS))
	}

	return ta
}

// Signer signs zones with fixed settings
type Signer struct {
	settings config.Signing
	now      func() time.Time
	logger   *logrus.Entry
}

// New creates a signer
func New(settings config.Signing) *Signer {
	return &Signer{
		settings: settings,
		now:      time.Now,
		logger:   log.PrefixedLog(signerLoggerPrefix),
	}
}

// Sign signs a zone with the given settings
func Sign(z *zone.Zone, settings config.Signing) (*SignedZone, error) {
	return New(settings).Sign(z)
}

// Sign generates the keys of the zone and returns a signed copy of it. The input zone is not modified.
func (s *Signer) Sign(z *zone.Zone) (*SignedZone, error) {
	origin := z.Origin()

	if err := s.checkSettings(origin); err != nil {
		return nil, err
	}

	soa, ok := z.SOA()
	if !ok {
		return nil, &SigningError{Zone: origin, Err: fmt.Errorf("%w: no SOA record at apex", ErrMalformedZone)}
	}

	for _, rr := range z.Records() {
		if t := rr.Header().Rrtype; util.IsDNSSECType(t) || t == dns.TypeDNSKEY {
			return nil, &SigningError{
				Zone: origin,
				Err:  fmt.Errorf("%w: zone already contains %s records", ErrMalformedZone, dns.Type(t)),
			}
		}
	}

	keys, err := generateKeys(origin, s.settings, soa.Hdr.Ttl)
	if err != nil {
		return nil, &SigningError{Zone: origin, Err: err}
	}

	signed := z.Clone()

	for _, k := range keys {
		if err := signed.Add(k.DNSKEY); err != nil {
			return nil, &SigningError{Zone: origin, Err: err}
		}
	}

	if s.settings.NSEC {
		if err := signed.Add(nsecChain(signed, soa.Minttl)...); err != nil {
			return nil, &SigningError{Zone: origin, Err: err}
		}
	}

	sigs, err := s.signRRsets(signed, keys)
	if err != nil {
		return nil, &SigningError{Zone: origin, Err: err}
	}

	if err := signed.Add(sigs...); err != nil {
		return nil, &SigningError{Zone: origin, Err: err}
	}

	result := &SignedZone{Zone: signed, Keys: keys}

	for _, k := range result.KSKs() {
		ds := k.DNSKEY.ToDS(s.settings.DigestType.ToDNS())
		if ds == nil {
			return nil, newSigningError(origin, "%w: %s", ErrUnsupportedDigest, s.settings.DigestType)
		}

		result.DS = append(result.DS, ds)
	}

	s.logger.WithFields(logrus.Fields{
		"zone":       origin,
		"keys":       len(keys),
		"signatures": len(sigs),
	}).Debugf("zone signed with %s", s.settings.Algorithm)

	evt.Bus().Publish(evt.ZoneSigned, origin.String(), s.settings.Algorithm.String())

	return result, nil
}

func (s *Signer) checkSettings(origin model.FQDN) error {
	if !s.settings.Algorithm.IsValid() || s.settings.Algorithm.ToDNS() == 0 {
		return newSigningError(origin, "%w: %s", ErrUnsupportedAlgorithm, s.settings.Algorithm)
	}

	if !s.settings.DigestType.IsValid() || s.settings.DigestType.ToDNS() == 0 {
		return newSigningError(origin, "%w: %s", ErrUnsupportedDigest, s.settings.DigestType)
	}

	if !s.settings.Validity.IsAboveZero() {
		return newSigningError(origin, "%w: signature validity must be above zero", ErrMalformedZone)
	}

	return nil
}

// signRRsets signs every authoritative RRset. NS records at delegation cuts and glue are not signed.
func (s *Signer) signRRsets(z *zone.Zone, keys []*Key) ([]dns.RR, error) {
	origin := z.Origin()
	now := s.now()
	inception := uint32(now.Add(-s.settings.InceptionOffset.ToDuration()).Unix())
	expiration := uint32(now.Add(s.settings.Validity.ToDuration()).Unix())

	var sigs []dns.RR

	for _, name := range z.Names() {
		if z.IsOccluded(name) {
			continue
		}

		cut, _, isCut := z.FindDelegation(name)
		isCut = isCut && cut == name

		for _, t := range z.Types(name) {
			if isCut && t != dns.TypeDS && t != dns.TypeNSEC {
				continue
			}

			rrset := z.Lookup(name, t)

			for _, k := range signingKeys(keys, t, s.settings.SplitKeys) {
				sig := &dns.RRSIG{
					Hdr: dns.RR_Header{
						Name:   name.String(),
						Rrtype: dns.TypeRRSIG,
						Class:  dns.ClassINET,
						Ttl:    rrset[0].Header().Ttl,
					},
					TypeCovered: t,
					Algorithm:   k.DNSKEY.Algorithm,
					Labels:      signatureLabels(name),
					OrigTtl:     rrset[0].Header().Ttl,
					Expiration:  expiration,
					Inception:   inception,
					KeyTag:      k.KeyTag(),
					SignerName:  origin.String(),
				}

				if err := sig.Sign(k.Signer, rrset); err != nil {
					return nil, fmt.Errorf("failed to sign %s %s: %w", name, dns.Type(t), err)
				}

				sigs = append(sigs, sig)
			}
		}
	}

	if len(sigs) == 0 {
		return nil, errors.New("nothing to sign")
	}

	return sigs, nil
}

// signingKeys selects the active keys signing an RRset: the DNSKEY RRset is signed by the KSKs,
// everything else by the ZSKs. Without key split the KSK signs everything.
func signingKeys(keys []*Key, rtype uint16, split bool) []*Key {
	var res []*Key

	for _, k := range keys {
		if !k.Active {
			continue
		}

		if split && k.IsKSK() != (rtype == dns.TypeDNSKEY) {
			continue
		}

		res = append(res, k)
	}

	return res
}

// signatureLabels counts the labels of the owner without a leading wildcard
func signatureLabels(name model.FQDN) uint8 {
	labels := name.Labels()
	if strings.HasPrefix(name.String(), "*.") {
		labels--
	}

	return uint8(labels)
}
