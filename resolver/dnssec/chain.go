package dnssec

// This file contains chain of trust validation logic per RFC 4035 §5.
// It walks from the signing zone up to a trust anchor and authenticates each DNSKEY RRset on the way down.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

const revokeFlag = 0x0080 // RFC 5011 §7

// zoneKeys is the outcome of authenticating the DNSKEY RRset of a zone
type zoneKeys struct {
	result ValidationResult
	keys   []*dns.DNSKEY // authenticated keys, only set for secure zones
}

// walkChainOfTrust returns the authenticated keys of zone. Results other than
// Indeterminate are cached.
func (v *Validator) walkChainOfTrust(ctx context.Context, zone model.FQDN) zoneKeys {
	if cached, ok := v.keyCache.Get(zone); ok {
		v.cacheHitMetrics.Inc()

		return cached.(zoneKeys) //nolint:forcetypeassert
	}

	res := v.authenticateZone(ctx, zone)

	v.logger.Debugf("Chain of trust for %s: %s", zone, res.result)

	if res.result != ValidationResultIndeterminate {
		v.keyCache.Add(zone, res)
	}

	return res
}

func (v *Validator) authenticateZone(ctx context.Context, zone model.FQDN) zoneKeys {
	if uint(zone.Labels()) > v.maxChainDepth {
		v.logger.Warnf("Zone %s exceeds maximum chain depth (%d labels > %d max)",
			zone, zone.Labels(), v.maxChainDepth)

		return zoneKeys{result: ValidationResultBogus}
	}

	if v.trustAnchors.HasTrustAnchor(zone) {
		return v.verifyAgainstTrustAnchor(ctx, zone)
	}

	if zone.IsRoot() {
		// no anchor at or above the zone: nothing to validate against
		return zoneKeys{result: ValidationResultInsecure}
	}

	return v.validateDelegation(ctx, zone)
}

// verifyAgainstTrustAnchor authenticates the DNSKEY RRset of an anchored zone with an anchored key
func (v *Validator) verifyAgainstTrustAnchor(ctx context.Context, zone model.FQDN) zoneKeys {
	response, keys, err := v.queryDNSKEY(ctx, zone)
	if err != nil {
		v.logger.Warnf("Failed to query DNSKEY for %s: %v", zone, err)

		return zoneKeys{result: ValidationResultIndeterminate}
	}

	for _, key := range usableKeys(keys) {
		if !v.trustAnchors.Matches(zone, key) {
			continue
		}

		if err := v.verifyDNSKEYRRset(response.Answer, key, zone); err != nil {
			v.logger.Warnf("DNSKEY RRset of %s not signed by anchored key %d: %v", zone, key.KeyTag(), err)

			continue
		}

		v.logger.Debugf("Validated DNSKEY of %s against trust anchor", zone)

		return zoneKeys{result: ValidationResultSecure, keys: usableKeys(keys)}
	}

	v.logger.Warnf("Failed to validate DNSKEY for %s against any trust anchor", zone)

	return zoneKeys{result: ValidationResultBogus}
}

// validateDelegation authenticates the DNSKEY RRset of zone through the DS RRset of its parent
func (v *Validator) validateDelegation(ctx context.Context, zone model.FQDN) zoneKeys {
	dsResponse, err := v.queryRecords(ctx, zone, dns.TypeDS)
	if err != nil {
		v.logger.Warnf("Failed to query DS for %s: %v", zone, err)

		return zoneKeys{result: ValidationResultIndeterminate}
	}

	parent, err := parentZone(zone, dsResponse)
	if err != nil {
		v.logger.Warnf("Can't determine parent zone of %s: %v", zone, err)

		return zoneKeys{result: ValidationResultBogus}
	}

	parentKeys := v.walkChainOfTrust(ctx, parent)
	if parentKeys.result != ValidationResultSecure {
		v.logger.Debugf("Parent zone %s of %s is %s", parent, zone, parentKeys.result)

		return zoneKeys{result: parentKeys.result}
	}

	dsRecords := util.ExtractRecords[*dns.DS](dsResponse.Answer)
	if len(dsRecords) == 0 {
		return zoneKeys{result: v.handleDSAbsence(zone, dsResponse, parentKeys.keys)}
	}

	if err := v.verifyWithKeys(dsResponse.Answer, zone, dns.TypeDS, parentKeys.keys); err != nil {
		v.logger.Warnf("DS RRset of %s is not signed by %s: %v", zone, parent, err)

		return zoneKeys{result: ValidationResultBogus}
	}

	response, keys, err := v.queryDNSKEY(ctx, zone)
	if err != nil {
		v.logger.Warnf("Failed to query DNSKEY for %s: %v", zone, err)

		return zoneKeys{result: ValidationResultIndeterminate}
	}

	ksk := v.findAndValidateKSK(keys, dsRecords, zone)
	if ksk == nil {
		v.logger.Warnf("Failed to validate any DNSKEY against DS records for %s", zone)

		return zoneKeys{result: ValidationResultBogus}
	}

	// RFC 4035 §5.2: the DNSKEY RRset is signed by the key the DS points to
	if err := v.verifyDNSKEYRRset(response.Answer, ksk, zone); err != nil {
		v.logger.Warnf("Failed to verify DNSKEY RRset for %s: %v", zone, err)

		return zoneKeys{result: ValidationResultBogus}
	}

	return zoneKeys{result: ValidationResultSecure, keys: usableKeys(keys)}
}

// handleDSAbsence classifies a delegation from a secure parent without DS: a valid NSEC
// proof makes it an insecure delegation, a wrong proof is bogus, no proof is indeterminate
func (v *Validator) handleDSAbsence(zone model.FQDN, dsResponse *dns.Msg, parentKeys []*dns.DNSKEY) ValidationResult {
	nsecRecords := util.ExtractRecords[*dns.NSEC](dsResponse.Ns)
	if len(nsecRecords) == 0 {
		v.logger.Warnf("No DS records for %s and no NSEC proof", zone)

		return ValidationResultIndeterminate
	}

	if !validateNSECNoDS(nsecRecords, zone) {
		v.logger.Warnf("NSEC records present but failed to prove DS absence for %s", zone)

		return ValidationResultBogus
	}

	if err := v.verifyWithKeys(dsResponse.Ns, zone, dns.TypeNSEC, parentKeys); err != nil {
		v.logger.Warnf("NSEC proof for missing DS of %s is not authentic: %v", zone, err)

		return ValidationResultBogus
	}

	v.logger.Debugf("Validated NSEC proof that DS doesn't exist for %s - insecure delegation", zone)

	return ValidationResultInsecure
}

// parentZone returns the zone a DS response came from: the signer of the DS RRset,
// the owner of the SOA of a negative response, or else the parent name
func parentZone(zone model.FQDN, dsResponse *dns.Msg) (model.FQDN, error) {
	candidate := ""

	for _, sig := range util.ExtractRecords[*dns.RRSIG](dsResponse.Answer) {
		if sig.TypeCovered == dns.TypeDS {
			candidate = sig.SignerName

			break
		}
	}

	if candidate == "" {
		if soa := util.ExtractRecords[*dns.SOA](dsResponse.Ns); len(soa) > 0 {
			candidate = soa[0].Hdr.Name
		}
	}

	if candidate == "" {
		parent, _ := zone.Parent()

		return parent, nil
	}

	parent, err := model.NewFQDN(candidate)
	if err != nil {
		return "", err
	}

	// the DS RRset lives on the parent side of the cut
	if !zone.IsStrictSubdomainOf(parent) {
		return "", fmt.Errorf("DS response for %s comes from %s which is not a parent", zone, parent)
	}

	return parent, nil
}

// queryDNSKEY queries the DNSKEY RRset of zone
func (v *Validator) queryDNSKEY(ctx context.Context, zone model.FQDN) (*dns.Msg, []*dns.DNSKEY, error) {
	response, err := v.queryRecords(ctx, zone, dns.TypeDNSKEY)
	if err != nil {
		return nil, nil, err
	}

	keys := util.ExtractRecords[*dns.DNSKEY](response.Answer)
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("no DNSKEY records for %s (rcode %s)", zone, dns.RcodeToString[response.Rcode])
	}

	return response, keys, nil
}

// usableKeys filters the zone keys which are not revoked (RFC 4034 §2.1.1, RFC 5011 §7)
func usableKeys(keys []*dns.DNSKEY) []*dns.DNSKEY {
	var res []*dns.DNSKEY

	for _, key := range keys {
		if key.Flags&dns.ZONE != 0 && key.Flags&revokeFlag == 0 {
			res = append(res, key)
		}
	}

	return res
}

// validateDNSKEY validates a DNSKEY against a DS record from the parent zone
func validateDNSKEY(dnskey *dns.DNSKEY, parentDS *dns.DS) error {
	// RFC 4034 §5.2: DS Algorithm field MUST match DNSKEY Algorithm field
	if dnskey.Algorithm != parentDS.Algorithm {
		return fmt.Errorf("algorithm mismatch: DNSKEY uses %d, DS expects %d",
			dnskey.Algorithm, parentDS.Algorithm)
	}

	calculatedDS := dnskey.ToDS(parentDS.DigestType)
	if calculatedDS == nil {
		return fmt.Errorf("unsupported DS digest type: %d", parentDS.DigestType)
	}

	if !equalDigest(calculatedDS.Digest, parentDS.Digest) {
		return fmt.Errorf("DS digest mismatch: expected %s, got %s", parentDS.Digest, calculatedDS.Digest)
	}

	return nil
}

func equalDigest(a, b string) bool {
	return strings.EqualFold(a, b)
}

// findAndValidateKSK returns the first usable DNSKEY matching one of the DS records
func (v *Validator) findAndValidateKSK(keys []*dns.DNSKEY, dsRecords []*dns.DS, zone model.FQDN) *dns.DNSKEY {
	for _, key := range usableKeys(keys) {
		for _, ds := range dsRecords {
			if ds.KeyTag != key.KeyTag() {
				continue
			}

			if err := validateDNSKEY(key, ds); err == nil {
				v.logger.Debugf("Validated KSK for %s: flags=%d, algorithm=%d, keytag=%d",
					zone, key.Flags, key.Algorithm, key.KeyTag())

				return key
			}
		}
	}

	return nil
}

// verifyDNSKEYRRset verifies the DNSKEY RRset in answer with an already trusted key of the zone
func (v *Validator) verifyDNSKEYRRset(answer []dns.RR, trusted *dns.DNSKEY, zone model.FQDN) error {
	dnskeyRecords := util.FilterRecords(answer, func(rr dns.RR) bool {
		return rr.Header().Rrtype == dns.TypeDNSKEY && zone.Equal(rr.Header().Name)
	})

	if len(dnskeyRecords) == 0 {
		return errors.New("no DNSKEY records found in answer")
	}

	for _, sig := range util.ExtractRecords[*dns.RRSIG](answer) {
		if sig.TypeCovered != dns.TypeDNSKEY ||
			sig.KeyTag != trusted.KeyTag() ||
			sig.Algorithm != trusted.Algorithm ||
			!zone.Equal(sig.SignerName) {
			continue
		}

		if err := v.verifyRRSIG(dnskeyRecords, sig, trusted); err != nil {
			return fmt.Errorf("DNSKEY RRset signature verification failed: %w", err)
		}

		return nil
	}

	return fmt.Errorf("no RRSIG found for trusted key (keytag=%d, algorithm=%d)",
		trusted.KeyTag(), trusted.Algorithm)
}

// verifyWithKeys verifies the RRset of owner and rrType in section with one of the given keys
func (v *Validator) verifyWithKeys(section []dns.RR, owner model.FQDN, rrType uint16, keys []*dns.DNSKEY) error {
	rrset := util.FilterRecords(section, func(rr dns.RR) bool {
		return rr.Header().Rrtype == rrType && owner.Equal(rr.Header().Name)
	})

	if len(rrset) == 0 {
		return fmt.Errorf("no %s records for %s", dns.Type(rrType), owner)
	}

	sigs := findMatchingRRSIGs(util.ExtractRecords[*dns.RRSIG](section), owner.String(), rrType)
	if len(sigs) == 0 {
		return fmt.Errorf("no RRSIG covering %s %s", owner, dns.Type(rrType))
	}

	var err error

	for _, sig := range sortRRSIGsByStrength(sigs) {
		key := findMatchingDNSKEY(keys, sig.KeyTag, sig.Algorithm)
		if key == nil {
			err = fmt.Errorf("no DNSKEY with key tag %d", sig.KeyTag)

			continue
		}

		if err = v.verifyRRSIG(rrset, sig, key); err == nil {
			return nil
		}
	}

	return err
}
