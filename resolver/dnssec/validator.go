// Package dnssec implements DNSSEC validation per RFC 4033, 4034 and 4035.
//
// The validator verifies RRSIGs of a response and walks the chain of trust from
// the configured trust anchors down to the signing zone. Authenticated denial of
// existence is supported with NSEC only.
//
// Example usage:
//
//	trustAnchors, err := dnssec.NewTrustAnchorStore(graph.TrustAnchor())
//	if err != nil {
//		return err
//	}
//
//	validator, err := dnssec.NewValidator(trustAnchors, logger, upstream, cfg.DNSSEC)
//	if err != nil {
//		return err
//	}
//
//	switch validator.ValidateResponse(ctx, response, question) {
//	case dnssec.ValidationResultSecure:
//		// Response is cryptographically validated
//	case dnssec.ValidationResultInsecure:
//		// Unsigned zone or no trust anchor above it
//	case dnssec.ValidationResultBogus:
//		// Invalid DNSSEC (should reject)
//	case dnssec.ValidationResultIndeterminate:
//		// Could not complete validation
//	}
package dnssec

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"context"
	"fmt"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/metrics"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	lru "github.com/hashicorp/golang-lru"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const ednsUDPSize = 4096 // EDNS UDP buffer size for DNSSEC queries

// Resolver is the interface for DNS resolution (minimal interface to avoid import cycles)
type Resolver interface {
	Resolve(ctx context.Context, request *model.Request) (*model.Response, error)
}

// ValidationResult represents the result of DNSSEC validation ENUM(
// Secure // Valid DNSSEC signatures and chain of trust
// Insecure // No DNSSEC (unsigned zone or no trust anchor above it)
// Bogus // Invalid DNSSEC (failed validation)
// Indeterminate // Validation could not be completed
// )
type ValidationResult int

// worse returns the result with the lower security: Bogus > Indeterminate > Insecure > Secure
func (x ValidationResult) worse(other ValidationResult) ValidationResult {
	rank := func(r ValidationResult) int {
		switch r {
		case ValidationResultBogus:
			return 3
		case ValidationResultIndeterminate:
			return 2
		case ValidationResultInsecure:
			return 1
		default:
			return 0
		}
	}

	if rank(other) > rank(x) {
		return other
	}

	return x
}

// Validator validates DNSSEC signatures and chains of trust
type Validator struct {
	trustAnchors          *TrustAnchorStore
	logger                *logrus.Entry
	upstream              Resolver // Used to query for DNSKEY and DS records
	keyCache              *lru.Cache
	maxChainDepth         uint
	maxUpstreamQueries    uint
	clockSkewToleranceSec uint
	now                   func() time.Time
	validationMetrics     *prometheus.CounterVec
	cacheHitMetrics       prometheus.Counter
	validationDuration    *prometheus.HistogramVec
}

// initializeMetrics initializes and registers Prometheus metrics for the validator
func (v *Validator) initializeMetrics() {
	v.validationMetrics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnstestbed_dnssec_validation_total",
			Help: "Number of DNSSEC validations by result",
		},
		[]string{"result"},
	)

	v.cacheHitMetrics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnstestbed_dnssec_cache_hits_total",
			Help: "Number of DNSSEC key cache hits",
		},
	)

	v.validationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnstestbed_dnssec_validation_duration_seconds",
			Help:    "Duration of DNSSEC validation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	metrics.RegisterMetric(v.validationMetrics)
	metrics.RegisterMetric(v.cacheHitMetrics)
	metrics.RegisterMetric(v.validationDuration)
}

// NewValidator creates a new DNSSEC validator querying DNSKEY and DS records through upstream.
// Zero limits in cfg are replaced by defaults.
func NewValidator(
	trustAnchors *TrustAnchorStore,
	logger *logrus.Entry,
	upstream Resolver,
	cfg config.DNSSEC,
) (*Validator, error) {
	if cfg.MaxChainDepth == 0 {
		cfg.MaxChainDepth = 10
	}

	if cfg.MaxUpstreamQueries == 0 {
		cfg.MaxUpstreamQueries = 30
	}

	if cfg.ClockSkewToleranceSec == 0 {
		cfg.ClockSkewToleranceSec = 3600
	}

	if cfg.CacheEntries <= 0 {
		cfg.CacheEntries = 256
	}

	keyCache, err := lru.New(cfg.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("can't create key cache: %w", err)
	}

	v := &Validator{
		trustAnchors:          trustAnchors,
		logger:                logger,
		upstream:              upstream,
		keyCache:              keyCache,
		maxChainDepth:         cfg.MaxChainDepth,
		maxUpstreamQueries:    cfg.MaxUpstreamQueries,
		clockSkewToleranceSec: cfg.ClockSkewToleranceSec,
		now:                   time.Now,
	}

	v.initializeMetrics()

	return v, nil
}

// ValidateResponse validates a DNS response's DNSSEC signatures according to RFC 4035.
//
//  1. Responses without any RRSIG are insecure, unless the zone of the question is signed
//  2. Every RRset of the answer is verified with a key of its signer, whose DNSKEY RRset
//     is validated along the chain of trust
//  3. Negative responses are validated with the NSEC records of the authority section
func (v *Validator) ValidateResponse(
	ctx context.Context,
	response *dns.Msg,
	question dns.Question,
) ValidationResult {
	start := time.Now()
	v.logger.Debugf("DNSSEC validation requested for %s", question.Name)

	// every validation gets its own budget of upstream queries
	ctx = withQueryBudget(ctx, v.maxUpstreamQueries)

	var result ValidationResult

	switch {
	case response.Rcode != dns.RcodeSuccess && response.Rcode != dns.RcodeNameError:
		result = ValidationResultIndeterminate
	case !hasAnySignatures(response):
		result = v.validateUnsigned(ctx, question)
	case len(response.Answer) > 0:
		result = v.validateAnswer(ctx, response, question)
	default:
		result = v.validateNegativeResponse(ctx, response, question)
	}

	v.recordMetrics(start, result)

	return result
}

// hasAnySignatures checks if response contains any RRSIG records
func hasAnySignatures(response *dns.Msg) bool {
	return len(util.ExtractRecords[*dns.RRSIG](response.Answer, response.Ns, response.Extra)) > 0
}

// validateUnsigned accepts an unsigned response only if the zone of the question is insecure
func (v *Validator) validateUnsigned(ctx context.Context, question dns.Question) ValidationResult {
	result := v.checkZoneSecurityStatus(ctx, question.Name)

	if result == ValidationResultSecure {
		v.logger.Warnf("Unsigned response for %s from a signed zone", question.Name)

		return ValidationResultBogus
	}

	v.logger.Debugf("No RRSIG records found for %s - zone is %s", question.Name, result)

	return result
}

// validateAnswer validates the answer section of a response
func (v *Validator) validateAnswer(
	ctx context.Context, response *dns.Msg, question dns.Question,
) ValidationResult {
	result := v.validateRRsets(ctx, response.Answer)
	if result != ValidationResultSecure {
		v.logger.Warnf("Answer validation for %s: %s", question.Name, result)
	} else {
		v.logger.Debugf("DNSSEC validation succeeded for %s", question.Name)
	}

	return result
}

// validateNegativeResponse validates NXDOMAIN or NODATA responses
func (v *Validator) validateNegativeResponse(
	ctx context.Context, response *dns.Msg, question dns.Question,
) ValidationResult {
	if len(util.ExtractRecords[*dns.RRSIG](response.Ns)) == 0 {
		v.logger.Debugf("No signatures in authority section for denial of existence: %s", question.Name)

		return v.validateUnsigned(ctx, question)
	}

	result := v.validateDenialOfExistence(ctx, response, question)
	if result != ValidationResultSecure {
		v.logger.Warnf("Denial of existence validation for %s: %s", question.Name, result)
	} else {
		v.logger.Debugf("Denial of existence validated for %s", question.Name)
	}

	return result
}

// recordMetrics records validation metrics
func (v *Validator) recordMetrics(start time.Time, result ValidationResult) {
	duration := time.Since(start)
	v.validationMetrics.WithLabelValues(result.String()).Inc()
	v.validationDuration.WithLabelValues(result.String()).Observe(duration.Seconds())
}

// rrsetKey uniquely identifies an RRset by owner name and type
type rrsetKey struct {
	name   string
	rrType uint16
}

// groupRRsetsByNameAndType groups RRs by their owner name and type (excluding RRSIGs),
// keeping the order of first appearance
func groupRRsetsByNameAndType(rrs []dns.RR) ([]rrsetKey, map[rrsetKey][]dns.RR) {
	var order []rrsetKey

	rrsets := make(map[rrsetKey][]dns.RR)

	for _, rr := range rrs {
		if _, isSig := rr.(*dns.RRSIG); isSig {
			continue
		}

		if rr.Header().Rrtype == dns.TypeOPT {
			continue
		}

		key := rrsetKey{
			name:   dns.CanonicalName(rr.Header().Name),
			rrType: rr.Header().Rrtype,
		}

		if _, ok := rrsets[key]; !ok {
			order = append(order, key)
		}

		rrsets[key] = append(rrsets[key], rr)
	}

	return order, rrsets
}

// validateRRsets validates all RRsets in a section. The result is the least secure of the RRset results.
func (v *Validator) validateRRsets(ctx context.Context, rrs []dns.RR) ValidationResult {
	sigs := util.ExtractRecords[*dns.RRSIG](rrs)
	order, rrsets := groupRRsetsByNameAndType(rrs)

	result := ValidationResultSecure

	for _, key := range order {
		result = result.worse(v.validateSingleRRset(ctx, key.rrType, rrsets[key], sigs, key.name))

		if result == ValidationResultBogus {
			return result
		}
	}

	return result
}

// validateSingleRRset validates a single RRset with its signatures
func (v *Validator) validateSingleRRset(
	ctx context.Context, rrType uint16, rrset []dns.RR, sigs []*dns.RRSIG, owner string,
) ValidationResult {
	matchingRRSIGs := findMatchingRRSIGs(sigs, owner, rrType)

	if len(matchingRRSIGs) == 0 {
		return v.handleMissingRRSIG(ctx, rrType, owner)
	}

	result := ValidationResultBogus

	// any verified signature makes the RRset secure; stronger algorithms are tried first
	for _, sig := range sortRRSIGsByStrength(matchingRRSIGs) {
		sigResult, err := v.tryVerifyWithRRSIG(ctx, rrset, sig)
		if sigResult == ValidationResultSecure {
			return sigResult
		}

		if err != nil {
			v.logger.Debugf("RRSIG for %s %s (keytag=%d) not verified: %v",
				owner, dns.Type(rrType), sig.KeyTag, err)
		}

		// an unusable chain (unsigned parent, unsupported algorithm, failed query) outranks a failed signature
		if sigResult != ValidationResultBogus {
			result = sigResult
		}
	}

	return result
}

// tryVerifyWithRRSIG verifies an RRset with a single RRSIG using the trusted keys of its signer
func (v *Validator) tryVerifyWithRRSIG(ctx context.Context, rrset []dns.RR, sig *dns.RRSIG) (ValidationResult, error) {
	signer, err := model.NewFQDN(sig.SignerName)
	if err != nil {
		return ValidationResultBogus, err
	}

	owner := model.FQDN(dns.CanonicalName(rrset[0].Header().Name))

	// DNSKEY RRsets are self-signed at the apex, everything else is signed by an enclosing zone
	if sig.TypeCovered == dns.TypeDNSKEY && owner != signer {
		return ValidationResultBogus, fmt.Errorf("DNSKEY signer %s must equal owner %s", signer, owner)
	}

	if !owner.IsSubdomainOf(signer) {
		return ValidationResultBogus, fmt.Errorf("signer name %s is not a parent of RRset owner %s", signer, owner)
	}

	if !isSupportedAlgorithm(sig.Algorithm) {
		// unsupported algorithms are treated as unsigned (RFC 4035 §5.2)
		return ValidationResultInsecure, fmt.Errorf("unsupported DNSSEC algorithm: %d", sig.Algorithm)
	}

	zone := v.walkChainOfTrust(ctx, signer)
	if zone.result != ValidationResultSecure {
		return zone.result, fmt.Errorf("chain of trust for %s is %s", signer, zone.result)
	}

	key := findMatchingDNSKEY(zone.keys, sig.KeyTag, sig.Algorithm)
	if key == nil {
		return ValidationResultBogus, fmt.Errorf("no DNSKEY with key tag %d and algorithm %d in %s",
			sig.KeyTag, sig.Algorithm, signer)
	}

	if err := v.verifyRRSIG(rrset, sig, key); err != nil {
		return ValidationResultBogus, err
	}

	return ValidationResultSecure, nil
}

// handleMissingRRSIG determines the validation result when no RRSIG is found for an RRset
func (v *Validator) handleMissingRRSIG(ctx context.Context, rrType uint16, owner string) ValidationResult {
	switch v.checkZoneSecurityStatus(ctx, owner) {
	case ValidationResultInsecure:
		v.logger.Debugf("RRset %s %s has no RRSIG, but zone is insecure - acceptable", owner, dns.Type(rrType))

		return ValidationResultInsecure
	case ValidationResultSecure:
		v.logger.Warnf("No RRSIG found for RRset %s %s (zone is secure)", owner, dns.Type(rrType))

		return ValidationResultBogus
	default:
		v.logger.Warnf("Cannot determine security status for zone of %s - treating as indeterminate", owner)

		return ValidationResultIndeterminate
	}
}

// checkZoneSecurityStatus determines if the zone containing name is signed (Secure) or not (Insecure)
func (v *Validator) checkZoneSecurityStatus(ctx context.Context, name string) ValidationResult {
	fqdn, err := model.NewFQDN(name)
	if err != nil {
		return ValidationResultIndeterminate
	}

	zone, err := v.findZone(ctx, fqdn)
	if err != nil {
		v.logger.Debugf("Can't find zone of %s: %v", fqdn, err)

		return ValidationResultIndeterminate
	}

	return v.walkChainOfTrust(ctx, zone).result
}
