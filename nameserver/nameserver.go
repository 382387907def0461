package nameserver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/server"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const nameServerLoggerPrefix = "nameserver"

// ErrServing is returned when the zone of a serving name server is replaced
var ErrServing = errors.New("name server is serving")

// NameServer is an authoritative-only server for exactly one zone
type NameServer struct {
	ep     *network.Endpoint
	logger *logrus.Entry
	srv    *server.Server

	mu      sync.RWMutex
	zone    *zone.Zone
	started bool
	stopped bool
}

// New creates a name server serving z on the endpoint. The zone stays mutable until Start.
func New(ep *network.Endpoint, z *zone.Zone) *NameServer {
	n := &NameServer{
		ep:     ep,
		zone:   z,
		logger: log.NodeLog(nameServerLoggerPrefix, ep.Addr()).WithField("zone", z.Origin()),
	}

	n.srv = server.New(ep, n, n.logger)

	return n
}

// NewForZone allocates an address on nw and creates a name server for origin with
// SOA, apex NS and the address record of its name server
func NewForZone(nw *network.Network, origin model.FQDN, cfg config.NameServer) (*NameServer, error) {
	ep, err := nw.Allocate()
	if err != nil {
		return nil, err
	}

	z, err := zone.NewApex(origin, ep.Addr(), cfg.TTL.SecondsU32(), cfg.NegativeTTL.SecondsU32())
	if err != nil {
		ep.Release()

		return nil, fmt.Errorf("can't create zone %s: %w", origin, err)
	}

	return New(ep, z), nil
}

// Role implements node.Node
func (n *NameServer) Role() node.Role {
	return node.RoleNameserver
}

// Addr implements node.Node
func (n *NameServer) Addr() netip.Addr {
	return n.ep.Addr()
}

// AddrPort returns the address the name server answers on
func (n *NameServer) AddrPort() netip.AddrPort {
	return n.ep.AddrPort()
}

// Endpoint returns the network endpoint of the name server
func (n *NameServer) Endpoint() *network.Endpoint {
	return n.ep
}

// ZoneName implements node.ZoneServer
func (n *NameServer) ZoneName() model.FQDN {
	return n.Zone().Origin()
}

// Zone returns the served zone
func (n *NameServer) Zone() *zone.Zone {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.zone
}

// SetZone replaces the zone before the name server starts, e.g. with its signed copy
func (n *NameServer) SetZone(z *zone.Zone) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrServing
	}

	if z.Origin() != n.zone.Origin() {
		return fmt.Errorf("can't replace zone %s with %s", n.zone.Origin(), z.Origin())
	}

	n.zone = z

	return nil
}

// IsRunning returns true while the name server is serving
func (n *NameServer) IsRunning() bool {
	return n.srv.IsRunning()
}

// Start freezes the zone and serves it over UDP and TCP
func (n *NameServer) Start(ctx context.Context) error {
	n.mu.Lock()

	if n.stopped {
		n.mu.Unlock()

		return server.ErrStopped
	}

	n.zone.Freeze()
	n.started = true
	n.mu.Unlock()

	if err := n.srv.Start(ctx); err != nil {
		return fmt.Errorf("can't start name server for %s: %w", n.ZoneName(), err)
	}

	n.logger.Debug("serving zone")
	node.PublishStarted(n)

	return nil
}

// Stop implements node.Node
func (n *NameServer) Stop() error {
	n.mu.Lock()

	if n.stopped {
		n.mu.Unlock()

		return nil
	}

	n.stopped = true
	n.mu.Unlock()

	wasRunning := n.srv.IsRunning()
	err := n.srv.Stop()

	n.ep.Release()

	if wasRunning {
		node.PublishStopped(n)
	}

	return err
}

// ServeDNS implements dns.Handler
func (n *NameServer) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := n.Answer(req)

	resp.Truncate(server.MaxResponseSize(w.LocalAddr().Network(), req))

	if log.PacketTracing() {
		n.logger.WithField("question", resp.Question).Tracef("answering with rcode %s", dns.RcodeToString[resp.Rcode])
	}

	if err := w.WriteMsg(resp); err != nil {
		n.logger.Error("can't write message: ", err)
	}
}

func (n *NameServer) String() string {
	return fmt.Sprintf("name server %s for %s", n.Addr(), n.ZoneName())
}
