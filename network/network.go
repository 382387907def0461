package network

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAllocationExhausted is returned if every address of the subnet is in use
var ErrAllocationExhausted = errors.New("address pool exhausted")

// ErrClosed is returned by operations on a closed network
var ErrClosed = errors.New("network is closed")

const networkLoggerPrefix = "network"

// Network is an isolated address space on the loopback interface. Every node of a topology is bound to its own
// address of the network; all traffic between nodes passes through tapped sockets and can be observed.
type Network struct {
	name   string
	prefix netip.Prefix
	port   uint16
	logger *logrus.Entry

	mu        sync.Mutex
	next      netip.Addr
	free      []netip.Addr
	endpoints map[netip.Addr]*Endpoint
	closed    bool

	attached atomic.Int32

	subMu  sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// New creates a network over the configured subnet
func New(cfg config.Network) (*Network, error) {
	prefix, err := cfg.Prefix()
	if err != nil {
		return nil, err
	}

	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("subnet '%s' is not IPv4", cfg.Subnet)
	}

	name := fmt.Sprintf("dnstestbed-%s", uuid.NewString())

	return &Network{
		name:      name,
		prefix:    prefix,
		port:      cfg.Port,
		logger:    log.PrefixedLog(networkLoggerPrefix).WithField("network", name),
		next:      prefix.Addr().Next(),
		endpoints: make(map[netip.Addr]*Endpoint),
		subs:      make(map[uint64]*Subscription),
	}, nil
}

// Name returns the unique name of the network
func (n *Network) Name() string {
	return n.name
}

// Port returns the port every node serves DNS on
func (n *Network) Port() uint16 {
	return n.port
}

// Prefix returns the address space of the network
func (n *Network) Prefix() netip.Prefix {
	return n.prefix
}

// Attached returns the number of allocated addresses
func (n *Network) Attached() int {
	return int(n.attached.Load())
}

// Allocate reserves an address for an in-process node
func (n *Network) Allocate() (*Endpoint, error) {
	return n.allocate(false)
}

// AllocateExternal reserves an address for a node running outside of this process (e.g. a container).
// Its traffic can only be observed from the in-process peers it talks to.
func (n *Network) AllocateExternal() (*Endpoint, error) {
	return n.allocate(true)
}

func (n *Network) allocate(external bool) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}

	var addr netip.Addr

	switch {
	case len(n.free) > 0:
		addr = n.free[len(n.free)-1]
		n.free = n.free[:len(n.free)-1]
	case n.isAssignable(n.next):
		addr = n.next
		n.next = n.next.Next()
	default:
		return nil, fmt.Errorf("%w: %s", ErrAllocationExhausted, n.prefix)
	}

	ep := &Endpoint{
		nw:       n,
		addr:     addr,
		external: external,
	}

	n.endpoints[addr] = ep
	n.attached.Add(1)

	n.logger.WithField("addr", addr).Debug("address allocated")

	return ep, nil
}

// isAssignable excludes the broadcast address of the subnet
func (n *Network) isAssignable(addr netip.Addr) bool {
	return addr.IsValid() && n.prefix.Contains(addr) && n.prefix.Contains(addr.Next())
}

func (n *Network) release(ep *Endpoint) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if cur, ok := n.endpoints[ep.addr]; !ok || cur != ep {
		return false
	}

	delete(n.endpoints, ep.addr)
	n.free = append(n.free, ep.addr)
	n.attached.Add(-1)

	return true
}

// isInProcess reports whether addr belongs to an in-process endpoint of this network
func (n *Network) isInProcess(addr netip.Addr) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ep, ok := n.endpoints[addr.Unmap()]

	return ok && !ep.external
}

// Close releases every address and closes all sockets still open
func (n *Network) Close() error {
	n.mu.Lock()

	if n.closed {
		n.mu.Unlock()

		return nil
	}

	n.closed = true

	endpoints := make([]*Endpoint, 0, len(n.endpoints))
	for _, ep := range n.endpoints {
		endpoints = append(endpoints, ep)
	}

	n.mu.Unlock()

	for _, ep := range endpoints {
		ep.Release()
	}

	n.subMu.Lock()
	n.subs = make(map[uint64]*Subscription)
	n.subMu.Unlock()

	n.logger.Debug("network closed")

	return nil
}
