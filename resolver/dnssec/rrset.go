package dnssec

// This file contains RRset and RRSIG signature validation logic per RFC 4035.

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Algorithm strength scores for preventing downgrade attacks
const (
	algorithmStrengthED448           = 100
	algorithmStrengthED25519         = 90
	algorithmStrengthECDSAP384SHA384 = 80
	algorithmStrengthECDSAP256SHA256 = 70
	algorithmStrengthRSASHA512       = 50
	algorithmStrengthRSASHA256       = 40
	algorithmStrengthRSASHA1         = 10 // deprecated
	algorithmStrengthUnsupported     = 0

	dnskeyProtocolValue  = 3          // Required protocol field value
	maxRSAExponentBytes  = 4          // Max exponent length supported by Go crypto (2^31-1)
	maxInt31             = 0x7FFFFFFF // Maximum RSA exponent value supported by Go crypto
	extendedExpLenOffset = 3          // Offset for extended exponent length format
	bitsPerByte          = 8
)

// algorithmStrength returns a strength score for a DNSSEC algorithm
func algorithmStrength(alg uint8) int {
	switch alg {
	case dns.ED448:
		return algorithmStrengthED448
	case dns.ED25519:
		return algorithmStrengthED25519
	case dns.ECDSAP384SHA384:
		return algorithmStrengthECDSAP384SHA384
	case dns.ECDSAP256SHA256:
		return algorithmStrengthECDSAP256SHA256
	case dns.RSASHA512:
		return algorithmStrengthRSASHA512
	case dns.RSASHA256:
		return algorithmStrengthRSASHA256
	case dns.RSASHA1, dns.RSASHA1NSEC3SHA1:
		return algorithmStrengthRSASHA1
	default:
		return algorithmStrengthUnsupported
	}
}

// sortRRSIGsByStrength returns a copy of rrsigs sorted by algorithm strength, strongest first
// (RFC 6840 §5.11)
func sortRRSIGsByStrength(rrsigs []*dns.RRSIG) []*dns.RRSIG {
	sorted := make([]*dns.RRSIG, len(rrsigs))
	copy(sorted, rrsigs)

	sort.SliceStable(sorted, func(i, j int) bool {
		return algorithmStrength(sorted[i].Algorithm) > algorithmStrength(sorted[j].Algorithm)
	})

	return sorted
}

// findMatchingRRSIGs finds all RRSIGs with the given owner name covering rrType
func findMatchingRRSIGs(sigs []*dns.RRSIG, ownerName string, rrType uint16) []*dns.RRSIG {
	ownerName = dns.CanonicalName(ownerName)

	var matchingRRSIGs []*dns.RRSIG

	for _, sig := range sigs {
		if sig.TypeCovered == rrType && dns.CanonicalName(sig.Hdr.Name) == ownerName {
			matchingRRSIGs = append(matchingRRSIGs, sig)
		}
	}

	return matchingRRSIGs
}

// findMatchingDNSKEY finds the DNSKEY that matches the given key tag and algorithm
func findMatchingDNSKEY(keys []*dns.DNSKEY, keyTag uint16, algorithm uint8) *dns.DNSKEY {
	for _, key := range keys {
		// RFC 4034 §2.1.2: The Protocol Field MUST have value 3
		if key.Protocol != dnskeyProtocolValue {
			continue
		}

		if key.KeyTag() == keyTag && key.Algorithm == algorithm {
			return key
		}
	}

	return nil
}

// hasUnsupportedRSAExponent checks if an RSA DNSKEY has an exponent that exceeds Go crypto's limit of 2^31-1
func hasUnsupportedRSAExponent(key *dns.DNSKEY) bool {
	switch key.Algorithm {
	case dns.RSASHA1, dns.RSASHA1NSEC3SHA1, dns.RSASHA256, dns.RSASHA512:
	default:
		return false
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(key.PublicKey)
	if err != nil || len(pubKeyBytes) < 1 {
		return false
	}

	// RFC 3110 §2
	var expLen, offset int

	if pubKeyBytes[0] == 0 {
		if len(pubKeyBytes) < extendedExpLenOffset {
			return false
		}

		expLen = int(pubKeyBytes[1])<<bitsPerByte | int(pubKeyBytes[2])
		offset = extendedExpLenOffset
	} else {
		expLen = int(pubKeyBytes[0])
		offset = 1
	}

	if expLen > maxRSAExponentBytes {
		return true
	}

	if len(pubKeyBytes) < offset+expLen {
		return false
	}

	var expValue uint64

	for _, b := range pubKeyBytes[offset : offset+expLen] {
		expValue = (expValue << bitsPerByte) | uint64(b)
	}

	return expValue > maxInt31
}

// isSupportedAlgorithm checks if the DNSSEC algorithm is supported (RFC 8624)
func isSupportedAlgorithm(alg uint8) bool {
	switch alg {
	case dns.RSASHA1,
		dns.RSASHA1NSEC3SHA1,
		dns.RSASHA256,
		dns.RSASHA512,
		dns.ECDSAP256SHA256,
		dns.ECDSAP384SHA384,
		dns.ED25519,
		dns.ED448:
		return true
	default:
		return false
	}
}

// verifyRRSIG verifies an RRSIG signature for an RRset with key
func (v *Validator) verifyRRSIG(rrset []dns.RR, rrsig *dns.RRSIG, key *dns.DNSKEY) error {
	if !isSupportedAlgorithm(rrsig.Algorithm) {
		return fmt.Errorf("unsupported DNSSEC algorithm: %d", rrsig.Algorithm)
	}

	if rrsig.Algorithm != key.Algorithm {
		return fmt.Errorf("algorithm mismatch: RRSIG uses %d, DNSKEY uses %d", rrsig.Algorithm, key.Algorithm)
	}

	if hasUnsupportedRSAExponent(key) {
		return fmt.Errorf("RSA exponent of DNSKEY %d is not supported", key.KeyTag())
	}

	// one timestamp for all checks; inception and expiration are widened by the clock skew tolerance
	now := v.now().Unix()
	tolerance := int64(v.clockSkewToleranceSec)

	if now < int64(rrsig.Inception)-tolerance {
		return fmt.Errorf("signature not yet valid (inception: %d, now: %d, tolerance: %ds)",
			rrsig.Inception, now, v.clockSkewToleranceSec)
	}

	if now > int64(rrsig.Expiration)+tolerance {
		return fmt.Errorf("signature expired (expiration: %d, now: %d, tolerance: %ds)",
			rrsig.Expiration, now, v.clockSkewToleranceSec)
	}

	if err := rrsig.Verify(key, rrset); err != nil {
		if v.logger.Logger.IsLevelEnabled(logrus.TraceLevel) {
			for i, rr := range rrset {
				v.logger.Tracef("  [%d] %s", i, rr.String())
			}
		}

		return fmt.Errorf("signature verification failed: %w", err)
	}

	return nil
}
