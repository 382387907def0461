package resolver

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/miekg/dns"
)

// Exchanger sends a single query to an authoritative server and returns its response
type Exchanger interface {
	Exchange(ctx context.Context, transport config.Transport, server netip.AddrPort, msg *dns.Msg) (*dns.Msg, error)
}

// EndpointExchanger sends queries from the address of a network endpoint
type EndpointExchanger struct {
	ep      *network.Endpoint
	timeout time.Duration
}

// NewEndpointExchanger creates an exchanger dialing from ep
func NewEndpointExchanger(ep *network.Endpoint, timeout time.Duration) *EndpointExchanger {
	return &EndpointExchanger{ep: ep, timeout: timeout}
}

// Exchange implements `Exchanger`.
func (e *EndpointExchanger) Exchange(
	ctx context.Context, transport config.Transport, server netip.AddrPort, msg *dns.Msg,
) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.ep.Dial(ctx, transport, server)
	if err != nil {
		return nil, err
	}

	defer conn.Close()

	client := &dns.Client{Net: transport.String(), Timeout: e.timeout}

	resp, _, err := client.ExchangeWithConnContext(ctx, msg, &dns.Conn{Conn: conn})
	if err != nil {
		return nil, fmt.Errorf("can't exchange %s with %s over %s: %w", questionOf(msg), server, transport, err)
	}

	return resp, nil
}

func questionOf(msg *dns.Msg) string {
	if len(msg.Question) == 0 {
		return "<empty>"
	}

	q := msg.Question[0]

	return fmt.Sprintf("%s %s", dns.Type(q.Qtype), q.Name)
}
