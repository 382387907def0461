package client

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const clientLoggerPrefix = "client"

// Client is a node issuing queries from its own address. It performs no resolution.
type Client struct {
	ep     *network.Endpoint
	cfg    config.Client
	logger *logrus.Entry

	mu      sync.Mutex
	stopped bool
}

// New allocates an address on nw for a client
func New(nw *network.Network, cfg config.Client) (*Client, error) {
	ep, err := nw.Allocate()
	if err != nil {
		return nil, err
	}

	return &Client{
		ep:     ep,
		cfg:    cfg,
		logger: log.NodeLog(clientLoggerPrefix, ep.Addr()),
	}, nil
}

// Role implements node.Node
func (c *Client) Role() node.Role {
	return node.RoleClient
}

// Addr implements node.Node
func (c *Client) Addr() netip.Addr {
	return c.ep.Addr()
}

// Endpoint returns the network endpoint of the client
func (c *Client) Endpoint() *network.Endpoint {
	return c.ep
}

// Settings returns the default settings of the client's configuration
func (c *Client) Settings() Settings {
	return DefaultSettings(c.cfg)
}

// Dig sends one query for name and qtype to the DNS port of server
func (c *Client) Dig(
	ctx context.Context, settings Settings, server netip.Addr, qtype dns.Type, name model.FQDN,
) (*Response, error) {
	q := Query{
		Server:   netip.AddrPortFrom(server, c.ep.Network().Port()),
		Type:     qtype,
		Name:     name,
		Settings: settings,
	}

	resp, err := Exchange(ctx, c.ep, q)
	if err != nil {
		c.logger.WithError(err).Debugf("query %s failed", q)

		return nil, err
	}

	c.logger.Debugf("query %s: %s", q, resp)

	return resp, nil
}

// Exchange implements node.Querier
func (c *Client) Exchange(ctx context.Context, server netip.AddrPort, req *dns.Msg) (*dns.Msg, error) {
	return ExchangeMsg(ctx, c.ep, c.Settings(), server, req)
}

// Stop implements node.Node
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	c.stopped = true
	c.ep.Release()

	return nil
}

func (c *Client) String() string {
	return fmt.Sprintf("client %s", c.Addr())
}
