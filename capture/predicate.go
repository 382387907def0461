package capture

import (
	"net/netip"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

// Matcher tests a single capture
type Matcher func(Capture) bool

// Predicate tests the captures recorded so far
type Predicate func([]Capture) bool

// Any is satisfied once one capture matches
func Any(m Matcher) Predicate {
	return AtLeast(1, m)
}

// AtLeast is satisfied once n captures match
func AtLeast(n int, m Matcher) Predicate {
	return func(captures []Capture) bool {
		return len(Filter(captures, m)) >= n
	}
}

// None is satisfied while no capture matches
func None(m Matcher) Predicate {
	return func(captures []Capture) bool {
		return len(Filter(captures, m)) == 0
	}
}

// Filter returns the captures matching m in recording order
func Filter(captures []Capture, m Matcher) []Capture {
	var result []Capture

	for _, c := range captures {
		if m(c) {
			result = append(result, c)
		}
	}

	return result
}

// OutgoingQuery matches queries for name and type sent by the observed address
func OutgoingQuery(qtype dns.Type, name model.FQDN) Matcher {
	return func(c Capture) bool {
		return c.Direction.IsOutgoing() && c.IsQuery() && c.Message.HasQuery(qtype, name)
	}
}

// IncomingQuery matches queries for name and type received by the observed address
func IncomingQuery(qtype dns.Type, name model.FQDN) Matcher {
	return func(c Capture) bool {
		return c.Direction.IsIncoming() && c.IsQuery() && c.Message.HasQuery(qtype, name)
	}
}

// IncomingResponse matches responses for name and type received by the observed address
func IncomingResponse(qtype dns.Type, name model.FQDN) Matcher {
	return func(c Capture) bool {
		return c.Direction.IsIncoming() && c.Message.IsResponse() && c.Message.HasQuery(qtype, name)
	}
}

// To matches outgoing messages sent to addr
func To(addr netip.Addr) Matcher {
	return func(c Capture) bool {
		return c.Direction.IsOutgoing() && c.Direction.Peer.Addr() == addr
	}
}

// From matches incoming messages sent by addr
func From(addr netip.Addr) Matcher {
	return func(c Capture) bool {
		return c.Direction.IsIncoming() && c.Direction.Peer.Addr() == addr
	}
}

// AllOf matches if all matchers match
func AllOf(matchers ...Matcher) Matcher {
	return func(c Capture) bool {
		for _, m := range matchers {
			if !m(c) {
				return false
			}
		}

		return true
	}
}

// Negate inverts m
func Negate(m Matcher) Matcher {
	return func(c Capture) bool {
		return !m(c)
	}
}
