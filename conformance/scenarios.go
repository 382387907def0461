package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xERR0R/dnstestbed/capture"
	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/record"
	"github.com/miekg/dns"
)

// ErrViolation is returned when the resolver under test does not behave as required
var ErrViolation = errors.New("conformance violation")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrViolation, fmt.Sprintf(format, args...))
}

// scoped records the traffic of the resolver for the duration of fn
func (tb *Testbed) scoped(fn func(*capture.Observer) error) error {
	return capture.Scoped(tb.Network, tb.Resolver.Addr(), fn, capture.WithConfig(tb.captureCfg))
}

// DSQueryGoesToParent checks that the resolver sends the DS query of the zone under test
// to the name server of the parent zone, never to the zone's own name server, and that
// the answer is the single DS record of the zone.
func DSQueryGoesToParent(ctx context.Context, tb *Testbed, timeout time.Duration) error {
	leaf := tb.Graph.Leaf()
	zone := leaf.ZoneName()

	parent, ok := zone.Parent()
	if !ok {
		return fmt.Errorf("zone %s has no parent", zone)
	}

	parentAddr, ok := tb.NameServerAddr(parent)
	if !ok {
		return fmt.Errorf("no name server for %s", parent)
	}

	return tb.scoped(func(o *capture.Observer) error {
		resp, err := tb.Dig(ctx, tb.Client.Settings().WithDNSSEC(), dns.Type(dns.TypeDS), zone)
		if err != nil {
			return err
		}

		sentToParent := capture.AllOf(capture.OutgoingQuery(dns.Type(dns.TypeDS), zone), capture.To(parentAddr))
		if err := o.WaitUntil(capture.Any(sentToParent), timeout); err != nil {
			return violation("DS query for %s was not sent to the %s name server: %v", zone, parent, err)
		}

		sentToChild := capture.AllOf(capture.OutgoingQuery(dns.Type(dns.TypeDS), zone), capture.To(leaf.Addr()))
		if misrouted := capture.Filter(o.Captures(), sentToChild); len(misrouted) > 0 {
			return violation("DS query for %s was sent %d time(s) to the name server of the zone itself",
				zone, len(misrouted))
		}

		return checkSingleDS(resp, zone)
	})
}

func checkSingleDS(resp *client.Response, zone model.FQDN) error {
	if !resp.Status.IsNoError() {
		return violation("DS query for %s answered with %s", zone, resp.Status)
	}

	ds := record.OfType[record.DS](resp.Answer)
	if len(ds) != 1 {
		return violation("DS query for %s answered with %d DS records, expected 1", zone, len(ds))
	}

	if ds[0].Zone != zone {
		return violation("DS record of %s answered for %s", ds[0].Zone, zone)
	}

	return nil
}

// ChainOfTrust checks that the resolver authenticates the answer for name through the whole
// delegation chain. The graph must be signed and the resolver must hold the trust anchor.
func ChainOfTrust(ctx context.Context, tb *Testbed, qtype dns.Type, name model.FQDN) error {
	resp, err := tb.Dig(ctx, tb.Client.Settings().WithDNSSEC(), qtype, name)
	if err != nil {
		return err
	}

	if !resp.Status.IsNoError() {
		if ede := resp.ExtendedError; ede != nil {
			return violation("%s %s answered with %s (extended error %d %s)", qtype, name, resp.Status, ede.Code, ede.Text)
		}

		return violation("%s %s answered with %s", qtype, name, resp.Status)
	}

	if !resp.Flags.AuthenticData {
		return violation("%s %s is not authenticated, flags [%s]", qtype, name, resp.Flags)
	}

	return nil
}

// CachedDelegation checks that once the delegations are cached, a query for name is sent
// to the name server of the zone under test only.
func CachedDelegation(ctx context.Context, tb *Testbed, qtype dns.Type, name model.FQDN, timeout time.Duration,
) error {
	settings := tb.Client.Settings()

	if _, err := tb.Dig(ctx, settings, qtype, name); err != nil {
		return fmt.Errorf("can't warm up the cache: %w", err)
	}

	leafAddr := tb.Graph.Leaf().Addr()

	return tb.scoped(func(o *capture.Observer) error {
		// a different name of the same zone is not in the answer cache of the resolver
		fresh := model.FQDN(fmt.Sprintf("fresh-%d.%s", time.Now().UnixNano(), tb.Graph.Leaf().ZoneName()))

		if _, err := tb.Dig(ctx, settings, qtype, fresh); err != nil {
			return err
		}

		if err := o.WaitUntil(capture.Any(capture.AllOf(capture.OutgoingQuery(qtype, fresh), capture.To(leafAddr))),
			timeout); err != nil {
			return violation("%s %s was not sent to the name server of %s: %v", qtype, fresh,
				tb.Graph.Leaf().ZoneName(), err)
		}

		elsewhere := capture.AllOf(capture.OutgoingQuery(qtype, fresh), capture.Negate(capture.To(leafAddr)))
		if sent := capture.Filter(o.Captures(), elsewhere); len(sent) > 0 {
			return violation("%s %s was sent to %s despite the cached delegation", qtype, fresh, sent[0])
		}

		return nil
	})
}
