package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	lru "github.com/hashicorp/golang-lru"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	upstreamUDPSize  = 4096
	maxCNAMERestarts = 8
)

var (
	// ErrReferralLimit is returned when a resolution follows more referrals than configured
	ErrReferralLimit = errors.New("referral limit exceeded")

	errNoServers = errors.New("no name server responded")
)

// delegation is a zone and the addresses of its authoritative servers
type delegation struct {
	zone    model.FQDN
	servers []netip.AddrPort
}

// resolution is the state of one client query, shared by the lookups it triggers
type resolution struct {
	do        bool
	referrals uint
}

// IterativeResolver resolves queries from the root hints by following referrals
type IterativeResolver struct {
	configurable[*config.Resolver]
	typed

	exchanger   Exchanger
	root        delegation
	delegations *lru.Cache
}

// NewIterativeResolver creates a resolver starting every resolution at the root hints.
// Name servers are expected to listen on port.
func NewIterativeResolver(
	cfg config.Resolver, hints []model.RootHint, port uint16, exchanger Exchanger,
) (*IterativeResolver, error) {
	if len(hints) == 0 {
		return nil, errors.New("at least one root hint is required")
	}

	delegations, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("can't create delegation cache: %w", err)
	}

	root := delegation{zone: model.Root}

	for _, hint := range hints {
		root.servers = append(root.servers, netip.AddrPortFrom(hint.Addr, port))
	}

	return &IterativeResolver{
		configurable: withConfig(&cfg),
		typed:        withType("iterative"),
		exchanger:    exchanger,
		root:         root,
		delegations:  delegations,
	}, nil
}

// LogConfig implements `config.Configurable`.
func (r *IterativeResolver) LogConfig(logger *logrus.Entry) {
	for _, server := range r.root.servers {
		logger.Infof("root = %s", server)
	}

	r.configurable.LogConfig(logger)
}

// Resolve resolves the question of the request iteratively.
// A failed resolution is answered with SERVFAIL, it is no error.
func (r *IterativeResolver) Resolve(ctx context.Context, request *model.Request) (*model.Response, error) {
	ctx, logger := r.log(ctx)

	if len(request.Req.Question) != 1 {
		return model.NewResponseWithRcode(request, dns.RcodeFormatError, model.ResponseTypeREFUSED,
			"exactly one question expected"), nil
	}

	q := request.Question()

	name, err := model.NewFQDN(q.Name)
	if err != nil {
		return model.NewResponseWithRcode(request, dns.RcodeFormatError, model.ResponseTypeREFUSED, err.Error()), nil
	}

	state := &resolution{do: util.IsDNSSECOK(request.Req)}

	msg, server, err := r.resolve(ctx, state, name, q.Qtype)
	if err != nil {
		logger.WithError(err).Debugf("resolution of %s %s failed", dns.Type(q.Qtype), name)

		response := model.NewResponseWithRcode(request, dns.RcodeServerFailure, model.ResponseTypeFAILED, err.Error())
		util.SetEdns0Option(response.Res, &dns.EDNS0_EDE{
			InfoCode:  model.ResponseTypeFAILED.ToExtendedErrorCode(),
			ExtraText: err.Error(),
		})

		return response, nil
	}

	res := new(dns.Msg)
	res.SetReply(request.Req)
	res.Rcode = msg.Rcode
	res.Answer = msg.Answer
	res.Ns = msg.Ns
	res.Extra = util.FilterRecords(msg.Extra, func(rr dns.RR) bool {
		return rr.Header().Rrtype != dns.TypeOPT
	})

	return &model.Response{
		Res:    res,
		RType:  model.ResponseTypeRESOLVED,
		Reason: fmt.Sprintf("RESOLVED (%s)", server),
	}, nil
}

// resolve iterates for name and restarts at the target of a CNAME answer
func (r *IterativeResolver) resolve(
	ctx context.Context, state *resolution, name model.FQDN, qtype uint16,
) (*dns.Msg, netip.AddrPort, error) {
	var answers []dns.RR

	current := name

	for restarts := 0; ; restarts++ {
		msg, server, err := r.iterate(ctx, state, current, qtype)
		if err != nil {
			return nil, server, err
		}

		answers = append(answers, msg.Answer...)

		target := followCNAMEs(msg.Answer, current)

		if qtype == dns.TypeCNAME || target == current || msg.Rcode != dns.RcodeSuccess ||
			hasRRset(msg.Answer, target, qtype) {
			msg.Answer = answers

			return msg, server, nil
		}

		if restarts >= maxCNAMERestarts {
			return nil, server, fmt.Errorf("CNAME chain of %s is longer than %d", name, maxCNAMERestarts)
		}

		current = target
	}
}

// iterate follows the referrals for name starting at the closest cached delegation
func (r *IterativeResolver) iterate(
	ctx context.Context, state *resolution, name model.FQDN, qtype uint16,
) (*dns.Msg, netip.AddrPort, error) {
	current := r.closestDelegation(name, qtype)

	for {
		if err := ctx.Err(); err != nil {
			return nil, netip.AddrPort{}, err
		}

		msg, server, err := r.queryDelegation(ctx, state, current, name, qtype)
		if err != nil {
			return nil, server, err
		}

		child, ok := referral(msg, current.zone, name, qtype)
		if !ok {
			return msg, server, nil
		}

		state.referrals++
		if state.referrals > r.cfg.MaxReferrals {
			return nil, server, fmt.Errorf("%w (%d) resolving %s", ErrReferralLimit, r.cfg.MaxReferrals, name)
		}

		next, err := r.delegationFor(ctx, state, current.zone, child, msg)
		if err != nil {
			return nil, server, err
		}

		r.delegations.Add(child, next)

		current = next
	}
}

// closestDelegation returns the deepest cached delegation enclosing name. A DS query starts at
// a zone strictly above name: the DS RRset lives on the parent side of the cut.
func (r *IterativeResolver) closestDelegation(name model.FQDN, qtype uint16) delegation {
	candidates := append([]model.FQDN{name}, name.Ancestors()...)

	if qtype == dns.TypeDS {
		candidates = candidates[1:]
	}

	for _, zone := range candidates {
		if zone.IsRoot() {
			break
		}

		if cached, ok := r.delegations.Get(zone); ok {
			return cached.(delegation)
		}
	}

	return r.root
}

// queryDelegation asks the servers of a delegation in order until one answers
func (r *IterativeResolver) queryDelegation(
	ctx context.Context, state *resolution, deleg delegation, name model.FQDN, qtype uint16,
) (*dns.Msg, netip.AddrPort, error) {
	var (
		lastErr    error
		last       *dns.Msg
		lastServer netip.AddrPort
	)

	for _, server := range deleg.servers {
		msg, err := r.exchange(ctx, state, server, name, qtype)
		if err != nil {
			lastErr = err

			continue
		}

		if msg.Rcode == dns.RcodeRefused || msg.Rcode == dns.RcodeServerFailure {
			last, lastServer = msg, server

			continue
		}

		return msg, server, nil
	}

	if last != nil {
		return last, lastServer, nil
	}

	return nil, lastServer, fmt.Errorf("%w for %s: %w", errNoServers, deleg.zone, lastErr)
}

// exchange sends one query over UDP and repeats it over TCP if the response was truncated
func (r *IterativeResolver) exchange(
	ctx context.Context, state *resolution, server netip.AddrPort, name model.FQDN, qtype uint16,
) (*dns.Msg, error) {
	req := util.NewMsgWithQuestion(name.String(), dns.Type(qtype))
	req.RecursionDesired = false
	req.SetEdns0(upstreamUDPSize, state.do)

	resp, err := r.exchanger.Exchange(ctx, config.TransportUdp, server, req)
	if err == nil && resp.Truncated {
		_, logger := r.log(ctx)
		logger.Debugf("truncated response from %s, retrying over TCP", server)

		resp, err = r.exchanger.Exchange(ctx, config.TransportTcp, server, req)
	}

	return resp, err
}

// delegationFor collects the server addresses of child from the referral, resolving
// name servers without glue
func (r *IterativeResolver) delegationFor(
	ctx context.Context, state *resolution, parent, child model.FQDN, referralMsg *dns.Msg,
) (delegation, error) {
	result := delegation{zone: child}

	var missingGlue []model.FQDN

	for _, ns := range util.ExtractRecords[*dns.NS](referralMsg.Ns) {
		if !child.Equal(ns.Hdr.Name) {
			continue
		}

		target, err := model.NewFQDN(ns.Ns)
		if err != nil {
			continue
		}

		addrs := glueFor(referralMsg.Extra, parent, target)
		if len(addrs) == 0 {
			missingGlue = append(missingGlue, target)
		}

		result.servers = appendServers(result.servers, addrs, r.port())
	}

	if len(result.servers) == 0 {
		for _, target := range missingGlue {
			msg, _, err := r.resolve(ctx, state, target, dns.TypeA)
			if err != nil {
				return result, fmt.Errorf("can't resolve name server %s of %s: %w", target, child, err)
			}

			result.servers = appendServers(result.servers, addressesOf(msg.Answer), r.port())
		}
	}

	if len(result.servers) == 0 {
		return result, fmt.Errorf("no address for any name server of %s", child)
	}

	return result, nil
}

func (r *IterativeResolver) port() uint16 {
	return r.root.servers[0].Port()
}

// referral returns the child zone if msg delegates name to a zone below zone
func referral(msg *dns.Msg, zone, name model.FQDN, qtype uint16) (model.FQDN, bool) {
	if msg.Rcode != dns.RcodeSuccess || msg.Authoritative || len(msg.Answer) > 0 {
		return "", false
	}

	for _, ns := range util.ExtractRecords[*dns.NS](msg.Ns) {
		child, err := model.NewFQDN(ns.Hdr.Name)
		if err != nil || !child.IsStrictSubdomainOf(zone) || !name.IsSubdomainOf(child) {
			continue
		}

		// never descend to the zone below the cut for its own DS RRset
		if qtype == dns.TypeDS && child == name {
			continue
		}

		return child, true
	}

	return "", false
}

// glueFor returns the addresses of target from the additional section, if target is
// inside the bailiwick of the referring zone
func glueFor(extra []dns.RR, parent, target model.FQDN) []netip.Addr {
	if !target.IsSubdomainOf(parent) {
		return nil
	}

	var addrs []netip.Addr

	for _, a := range util.ExtractRecords[*dns.A](extra) {
		if !target.Equal(a.Hdr.Name) {
			continue
		}

		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}

func addressesOf(answer []dns.RR) []netip.Addr {
	var addrs []netip.Addr

	for _, a := range util.ExtractRecords[*dns.A](answer) {
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}

func appendServers(servers []netip.AddrPort, addrs []netip.Addr, port uint16) []netip.AddrPort {
	for _, addr := range addrs {
		servers = append(servers, netip.AddrPortFrom(addr, port))
	}

	return servers
}

// followCNAMEs returns the end of the CNAME chain starting at name
func followCNAMEs(answer []dns.RR, name model.FQDN) model.FQDN {
	cnames := util.ExtractRecords[*dns.CNAME](answer)

	for range cnames {
		next := name

		for _, cname := range cnames {
			if name.Equal(cname.Hdr.Name) {
				if target, err := model.NewFQDN(cname.Target); err == nil {
					next = target
				}

				break
			}
		}

		if next == name {
			break
		}

		name = next
	}

	return name
}

func hasRRset(answer []dns.RR, name model.FQDN, qtype uint16) bool {
	for _, rr := range answer {
		if rr.Header().Rrtype == qtype && name.Equal(rr.Header().Name) {
			return true
		}
	}

	return false
}
