package dnssec

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

// queryBudgetKey is the context key for tracking upstream query budget
type queryBudgetKey struct{}

type queryBudget struct {
	remaining atomic.Int64
	max       uint
}

// withQueryBudget returns a context limiting the upstream queries of one validation
func withQueryBudget(ctx context.Context, maxQueries uint) context.Context {
	budget := &queryBudget{max: maxQueries}
	budget.remaining.Store(int64(maxQueries))

	return context.WithValue(ctx, queryBudgetKey{}, budget)
}

// consumeQueryBudget takes one query from the budget and returns an error if it is exhausted
func consumeQueryBudget(ctx context.Context) error {
	budget, ok := ctx.Value(queryBudgetKey{}).(*queryBudget)
	if !ok {
		return nil
	}

	if budget.remaining.Add(-1) < 0 {
		return fmt.Errorf("upstream query budget exhausted (max: %d queries per validation)", budget.max)
	}

	return nil
}

// queryRecords performs a DNS query for a specific record type with the DO bit set
func (v *Validator) queryRecords(ctx context.Context, domain model.FQDN, qtype uint16) (*dns.Msg, error) {
	if err := consumeQueryBudget(ctx); err != nil {
		v.logger.Warnf("Query budget exhausted while querying %s %s: %v", domain, dns.Type(qtype), err)

		return nil, err
	}

	msg := util.NewMsgWithQuestion(domain.String(), dns.Type(qtype))
	msg.SetEdns0(ednsUDPSize, true)

	req := &model.Request{
		Req:      msg,
		Protocol: model.RequestProtocolUDP,
		Log:      v.logger,
	}

	response, err := v.upstream.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upstream query %s %s failed: %w", domain, dns.Type(qtype), err)
	}

	if response == nil || response.Res == nil {
		return nil, fmt.Errorf("upstream query %s %s: empty response", domain, dns.Type(qtype))
	}

	return response.Res, nil
}

// findZone returns the apex of the zone containing name, taken from the SOA of a SOA query
func (v *Validator) findZone(ctx context.Context, name model.FQDN) (model.FQDN, error) {
	response, err := v.queryRecords(ctx, name, dns.TypeSOA)
	if err != nil {
		return "", err
	}

	for _, soa := range util.ExtractRecords[*dns.SOA](response.Answer, response.Ns) {
		zone, err := model.NewFQDN(soa.Hdr.Name)
		if err == nil && name.IsSubdomainOf(zone) {
			return zone, nil
		}
	}

	return "", fmt.Errorf("no SOA for %s in response (rcode %s)", name, dns.RcodeToString[response.Rcode])
}
