package resolver

import (
	"context"
	"fmt"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/resolver/dnssec"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

const (
	// ednsUDPSize is the EDNS0 UDP buffer size
	ednsUDPSize = 4096
)

// DNSSECResolver is responsible for DNSSEC validation of DNS responses
type DNSSECResolver struct {
	configurable[*config.DNSSEC]
	NextResolver
	typed

	validator *dnssec.Validator
}

// NewDNSSECResolver creates a new DNSSEC resolver instance. Validation is enabled only
// if the configuration enables it and the store holds at least one trust anchor.
// The validator sends its DNSKEY and DS queries to upstream.
func NewDNSSECResolver(
	ctx context.Context, cfg config.DNSSEC, trustAnchors *dnssec.TrustAnchorStore, upstream Resolver,
) (*DNSSECResolver, error) {
	r := &DNSSECResolver{
		configurable: withConfig(&cfg),
		typed:        withType("dnssec"),
	}

	if !cfg.IsEnabled() || trustAnchors == nil || trustAnchors.IsEmpty() {
		return r, nil
	}

	_, logger := r.log(ctx)

	validator, err := dnssec.NewValidator(trustAnchors, logger, upstream, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	r.validator = validator

	logger.Infof("DNSSEC resolver initialized with trust anchor(s) for %v", trustAnchors.Zones())

	return r, nil
}

// IsEnabled implements `config.Configurable`.
func (r *DNSSECResolver) IsEnabled() bool {
	return r.validator != nil
}

// Resolve validates DNSSEC signatures if validation is enabled
func (r *DNSSECResolver) Resolve(ctx context.Context, request *model.Request) (*model.Response, error) {
	if !r.IsEnabled() {
		return r.next.Resolve(ctx, request)
	}

	ctx, logger := r.log(ctx)

	q := request.Question()

	if opt := request.Req.IsEdns0(); opt != nil {
		opt.SetDo(true)

		if opt.UDPSize() < ednsUDPSize {
			opt.SetUDPSize(ednsUDPSize)
		}
	} else {
		request.Req.SetEdns0(ednsUDPSize, true)
	}

	response, err := r.next.Resolve(ctx, request)
	if err != nil {
		return nil, err
	}

	// checking disabled: the client validates itself
	if request.Req.CheckingDisabled {
		logger.Debugf("checking disabled for %s, skipping validation", q.Name)

		response.Res.AuthenticatedData = false

		return response, nil
	}

	result := r.validator.ValidateResponse(ctx, response.Res, q)

	logger.Debugf("DNSSEC validation result for %s: %s", q.Name, result)

	switch result {
	case dnssec.ValidationResultBogus:
		logger.Warnf("DNSSEC validation failed for %s - returning SERVFAIL", q.Name)

		return createServFailResponseDNSSEC(request, "DNSSEC validation failed: bogus signatures"), nil

	case dnssec.ValidationResultSecure:
		response.Res.AuthenticatedData = true
		response.RType = model.ResponseTypeSECURE

	case dnssec.ValidationResultInsecure, dnssec.ValidationResultIndeterminate:
		response.Res.AuthenticatedData = false
	}

	return response, nil
}

// createServFailResponseDNSSEC creates a SERVFAIL response for a DNSSEC validation failure
func createServFailResponseDNSSEC(request *model.Request, reason string) *model.Response {
	modelResp := model.NewResponseWithRcode(request, dns.RcodeServerFailure, model.ResponseTypeBOGUS, reason)

	// RFC 8914 §5.2
	util.SetEdns0Option(modelResp.Res, &dns.EDNS0_EDE{
		InfoCode:  model.ResponseTypeBOGUS.ToExtendedErrorCode(),
		ExtraText: reason,
	})
	util.GetEdns0Record(modelResp.Res).SetUDPSize(ednsUDPSize)

	return modelResp
}
