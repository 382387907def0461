package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
)

const graphLoggerPrefix = "graph"

// Sign is the signing policy applied to every zone of a graph
type Sign struct {
	settings *config.Signing
}

// Unsigned builds a graph without DNSSEC
func Unsigned() Sign {
	return Sign{}
}

// Signed signs every zone of the graph with settings
func Signed(settings config.Signing) Sign {
	return Sign{settings: &settings}
}

// Settings returns the signing settings if signing is requested
func (s Sign) Settings() (config.Signing, bool) {
	if s.settings == nil {
		return config.Signing{}, false
	}

	return *s.settings, true
}

func (s Sign) String() string {
	if s.settings == nil {
		return "unsigned"
	}

	return fmt.Sprintf("signed (%s)", s.settings.Algorithm)
}

// NameServerFactory creates the name server of an ancestor zone
type NameServerFactory func(nw *network.Network, origin model.FQDN, cfg config.NameServer) (*nameserver.NameServer, error)

// Option customizes the construction of a graph
type Option func(*builder)

// WithConfig sets the TTLs of the records the builder creates
func WithConfig(cfg config.NameServer) Option {
	return func(b *builder) {
		b.cfg = cfg
	}
}

// WithNameServerFactory replaces the creation of the ancestor name servers
func WithNameServerFactory(factory NameServerFactory) Option {
	return func(b *builder) {
		b.factory = factory
	}
}

// Graph is a delegation chain from the root zone down to a leaf zone
type Graph struct {
	// NameServers of the chain, root first and the leaf last
	NameServers []*nameserver.NameServer
	// Root is the hint a resolver starts its iteration with
	Root model.RootHint

	trustAnchor *signer.TrustAnchor
	logger      *logrus.Entry

	mu     sync.Mutex
	closed bool
}

// TrustAnchor returns the trust anchor of the root zone for signed graphs
func (g *Graph) TrustAnchor() (*signer.TrustAnchor, bool) {
	return g.trustAnchor, g.trustAnchor != nil
}

// Leaf returns the name server of the zone under test
func (g *Graph) Leaf() *nameserver.NameServer {
	return g.NameServers[len(g.NameServers)-1]
}

// NameServerFor returns the name server serving zone
func (g *Graph) NameServerFor(zone model.FQDN) (*nameserver.NameServer, bool) {
	for _, ns := range g.NameServers {
		if ns.ZoneName() == zone {
			return ns, true
		}
	}

	return nil, false
}

// Nodes returns the name servers as nodes, root first
func (g *Graph) Nodes() []node.Node {
	nodes := make([]node.Node, len(g.NameServers))

	for i, ns := range g.NameServers {
		nodes[i] = ns
	}

	return nodes
}

// Close stops every name server of the graph, the leaf first. Subsequent calls have no effect.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true

	g.logger.Debug("closing topology")

	return node.StopAll(g.Nodes()...)
}

func (g *Graph) String() string {
	zones := make([]string, len(g.NameServers))

	for i, ns := range g.NameServers {
		zones[i] = fmt.Sprintf("%s@%s", ns.ZoneName(), ns.Addr())
	}

	return strings.Join(zones, " -> ")
}

type builder struct {
	nw      *network.Network
	cfg     config.NameServer
	factory NameServerFactory
	logger  *logrus.Entry

	// chain of the graph, root first
	chain   []*nameserver.NameServer
	created []node.Node
	started []node.Node

	// zone of the leaf before signing, restored on rollback
	leaf     *nameserver.NameServer
	leafZone *zone.Zone
}

// Build materializes the ancestors of the leaf zone down from the root, each delegating to its
// child, signs the chain leaf first if requested and starts every name server root first.
// The leaf must not be serving yet: its zone receives the signed records.
// On failure a *TopologyError is returned, every node the builder created or started is stopped
// and a leaf which is not serving keeps its unsigned zone.
func Build(ctx context.Context, nw *network.Network, leaf *nameserver.NameServer, sign Sign,
	opts ...Option,
) (*Graph, error) {
	b := &builder{
		nw:      nw,
		factory: nameserver.NewForZone,
		logger:  log.PrefixedLog(graphLoggerPrefix).WithField("leaf", leaf.ZoneName()),
	}

	if err := defaults.Set(&b.cfg); err != nil {
		return nil, &TopologyError{Step: StepPrepare, Zone: leaf.ZoneName(), Err: err}
	}

	for _, opt := range opts {
		opt(b)
	}

	g, err := b.build(ctx, leaf, sign)
	if err != nil {
		b.rollback()

		return nil, err
	}

	return g, nil
}

func (b *builder) build(ctx context.Context, leaf *nameserver.NameServer, sign Sign) (*Graph, error) {
	if leaf.IsRunning() {
		return nil, &TopologyError{Step: StepPrepare, Zone: leaf.ZoneName(), Err: ErrLeafServing}
	}

	if err := b.allocate(leaf); err != nil {
		return nil, err
	}

	if err := b.delegate(); err != nil {
		return nil, err
	}

	g := &Graph{
		NameServers: b.chain,
		Root:        model.RootHint{Name: zone.NameServerName(model.Root), Addr: b.chain[0].Addr()},
		logger:      b.logger,
	}

	if settings, ok := sign.Settings(); ok {
		b.leaf, b.leafZone = leaf, leaf.Zone()

		anchor, err := b.sign(settings)
		if err != nil {
			return nil, err
		}

		g.trustAnchor = anchor
	}

	if err := b.start(ctx); err != nil {
		return nil, err
	}

	b.logger.Debugf("topology %s built %s", g, sign)

	return g, nil
}

// allocate creates a name server for every ancestor of the leaf zone
func (b *builder) allocate(leaf *nameserver.NameServer) error {
	ancestors := leaf.ZoneName().Ancestors()

	for i := len(ancestors) - 1; i >= 0; i-- {
		ns, err := b.factory(b.nw, ancestors[i], b.cfg)
		if err != nil {
			return &TopologyError{Step: StepAllocate, Zone: ancestors[i], Err: err}
		}

		b.created = append(b.created, ns)
		b.chain = append(b.chain, ns)
	}

	b.chain = append(b.chain, leaf)

	return nil
}

// delegate adds NS and glue of every child to its parent
func (b *builder) delegate() error {
	ttl := b.cfg.TTL.SecondsU32()

	for i := 1; i < len(b.chain); i++ {
		parent, child := b.chain[i-1], b.chain[i]

		if err := parent.Zone().Delegate(child.ZoneName(), child.Addr(), ttl); err != nil {
			return &TopologyError{Step: StepDelegate, Zone: parent.ZoneName(), Err: err}
		}
	}

	return nil
}

// sign signs the chain leaf first, threading each DS into the parent before the parent is signed
func (b *builder) sign(settings config.Signing) (*signer.TrustAnchor, error) {
	s := signer.New(settings)

	var signed *signer.SignedZone

	for i := len(b.chain) - 1; i >= 0; i-- {
		ns := b.chain[i]

		var err error

		signed, err = s.Sign(ns.Zone())
		if err != nil {
			return nil, &TopologyError{Step: StepSign, Zone: ns.ZoneName(), Err: err}
		}

		if err := ns.SetZone(signed.Zone); err != nil {
			return nil, &TopologyError{Step: StepSign, Zone: ns.ZoneName(), Err: err}
		}

		if i == 0 {
			break
		}

		parent := b.chain[i-1]

		for _, ds := range signed.DS {
			if err := parent.Zone().Add(ds); err != nil {
				return nil, &TopologyError{Step: StepSign, Zone: parent.ZoneName(), Err: err}
			}
		}
	}

	return signed.TrustAnchor(), nil
}

// start starts the name servers root first
func (b *builder) start(ctx context.Context) error {
	for _, ns := range b.chain {
		if err := ns.Start(ctx); err != nil {
			return &TopologyError{Step: StepStart, Zone: ns.ZoneName(), Err: err}
		}

		b.started = append(b.started, ns)
	}

	return nil
}

// rollback stops the started name servers and the created ancestors. The leaf stays with the caller
// unless it was started by the builder; a leaf which is not serving gets its unsigned zone back.
func (b *builder) rollback() {
	nodes := append([]node.Node{}, b.created...)

	for _, n := range b.started {
		if !containsNode(nodes, n) {
			nodes = append(nodes, n)
		}
	}

	if err := node.StopAll(nodes...); err != nil {
		b.logger.WithError(err).Warn("can't stop the nodes of a failed topology")
	}

	if b.leafZone != nil && !containsNode(b.started, b.leaf) && b.leaf.Zone() != b.leafZone {
		if err := b.leaf.SetZone(b.leafZone); err != nil {
			b.logger.WithError(err).Warn("can't restore the zone of the leaf")
		}
	}
}

func containsNode(nodes []node.Node, n node.Node) bool {
	for _, o := range nodes {
		if o == n {
			return true
		}
	}

	return false
}
