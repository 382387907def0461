// Package conformance assembles complete test beds: a delegation chain down to a zone under test,
// a resolver under test iterating from its root and a client querying the resolver.
package conformance

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/0xERR0R/dnstestbed/capture"
	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/container"
	"github.com/0xERR0R/dnstestbed/graph"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/resolver"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const testbedLoggerPrefix = "testbed"

// Resolver is the resolver under test, in-process or in a container
type Resolver interface {
	node.Validating
	AddrPort() netip.AddrPort
}

// ResolverKind selects the implementation of the resolver under test
type ResolverKind int

const (
	// ResolverBuiltin is the in-process iterative resolver
	ResolverBuiltin ResolverKind = iota
	// ResolverUnbound runs unbound in a container, the network port must be 53
	ResolverUnbound
)

// Options describe the test bed to build
type Options struct {
	// Zone under test, the leaf of the delegation chain
	Zone model.FQDN
	// Records of the zone under test in presentation format
	Records []string
	Sign    graph.Sign
	// Resolver defaults to the in-process resolver
	Resolver ResolverKind
	// NoTrustAnchor starts the resolver of a signed graph without trust anchor
	NoTrustAnchor bool
	// TrustAnchor replaces the trust anchor of the root zone
	TrustAnchor *signer.TrustAnchor
}

// Testbed is a started delegation chain with a resolver and a client
type Testbed struct {
	Network  *network.Network
	Graph    *graph.Graph
	Resolver Resolver
	Client   *client.Client

	sign       graph.Sign
	captureCfg config.Capture
	logger     *logrus.Entry

	mu     sync.Mutex
	closed bool
}

// New builds the test bed on a new network. On failure every node started so far is stopped.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Testbed, error) {
	nw, err := network.New(cfg.Network)
	if err != nil {
		return nil, err
	}

	tb := &Testbed{
		Network:    nw,
		sign:       opts.Sign,
		captureCfg: cfg.Capture,
		logger:     log.PrefixedLog(testbedLoggerPrefix).WithField("network", nw.Name()),
	}

	if err := tb.start(ctx, cfg, opts); err != nil {
		if closeErr := tb.Close(); closeErr != nil {
			tb.logger.WithError(closeErr).Warn("can't tear down the test bed")
		}

		return nil, err
	}

	tb.logger.Debugf("test bed ready: %s", tb)

	return tb, nil
}

func (tb *Testbed) start(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Zone == "" {
		opts.Zone = model.TestDomain
	}

	leaf, err := nameserver.NewForZone(tb.Network, opts.Zone, cfg.NameServer)
	if err != nil {
		return err
	}

	if err := leaf.Zone().AddString(opts.Records...); err != nil {
		return multierror.Append(fmt.Errorf("can't add the records of %s: %w", opts.Zone, err), leaf.Stop())
	}

	g, err := graph.Build(ctx, tb.Network, leaf, opts.Sign, graph.WithConfig(cfg.NameServer))
	if err != nil {
		return multierror.Append(err, leaf.Stop())
	}

	tb.Graph = g

	switch opts.Resolver {
	case ResolverUnbound:
		err = tb.startUnbound(ctx, cfg.Container, opts)
	default:
		err = tb.startResolver(ctx, cfg, opts)
	}

	if err != nil {
		return err
	}

	c, err := client.New(tb.Network, cfg.Client)
	if err != nil {
		return err
	}

	tb.Client = c

	return nil
}

// trustAnchor returns the anchor the resolver under test is configured with
func (tb *Testbed) trustAnchor(opts Options) (*signer.TrustAnchor, bool) {
	if opts.NoTrustAnchor {
		return nil, false
	}

	if opts.TrustAnchor != nil {
		return opts.TrustAnchor, true
	}

	return tb.Graph.TrustAnchor()
}

func (tb *Testbed) startResolver(ctx context.Context, cfg *config.Config, opts Options) error {
	resolverOpts := []resolver.Option{resolver.WithMetrics(cfg.Metrics)}

	if anchor, ok := tb.trustAnchor(opts); ok {
		resolverOpts = append(resolverOpts, resolver.WithTrustAnchor(anchor))
	}

	srv, err := resolver.NewServer(tb.Network, tb.Graph.Root, cfg.Resolver, resolverOpts...)
	if err != nil {
		return err
	}

	tb.Resolver = srv

	srv.LogConfig(tb.logger)

	return srv.Start(ctx)
}

func (tb *Testbed) startUnbound(ctx context.Context, cfg config.Container, opts Options) error {
	var unboundOpts []container.Option

	if anchor, ok := tb.trustAnchor(opts); ok {
		unboundOpts = append(unboundOpts, container.WithTrustAnchor(anchor))
	}

	u, err := container.NewUnbound(ctx, tb.Network, tb.Graph.Root, cfg, unboundOpts...)
	if err != nil {
		return err
	}

	tb.Resolver = u

	return nil
}

// Sign returns the signing policy of the delegation chain
func (tb *Testbed) Sign() graph.Sign {
	return tb.sign
}

// Dig sends a recursive query from the client to the resolver
func (tb *Testbed) Dig(ctx context.Context, settings client.Settings, qtype dns.Type, name model.FQDN,
) (*client.Response, error) {
	return tb.Client.Dig(ctx, settings.WithRecurse(), tb.Resolver.Addr(), qtype, name)
}

// Eavesdrop attaches an observer to the resolver
func (tb *Testbed) Eavesdrop(opts ...capture.Option) (*capture.Observer, error) {
	opts = append([]capture.Option{capture.WithConfig(tb.captureCfg)}, opts...)

	return capture.Eavesdrop(tb.Network, tb.Resolver, opts...)
}

// NameServerAddr returns the address of the name server serving zone
func (tb *Testbed) NameServerAddr(zone model.FQDN) (netip.Addr, bool) {
	ns, ok := tb.Graph.NameServerFor(zone)
	if !ok {
		return netip.Addr{}, false
	}

	return ns.Addr(), true
}

// Nodes returns every node, the name servers root first followed by the resolver and the client
func (tb *Testbed) Nodes() []node.Node {
	var nodes []node.Node

	if tb.Graph != nil {
		nodes = append(nodes, tb.Graph.Nodes()...)
	}

	if tb.Resolver != nil {
		nodes = append(nodes, tb.Resolver)
	}

	if tb.Client != nil {
		nodes = append(nodes, tb.Client)
	}

	return nodes
}

// Close stops every node and releases the network. Subsequent calls have no effect.
func (tb *Testbed) Close() error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.closed {
		return nil
	}

	tb.closed = true

	var (
		result *multierror.Error
		nodes  []node.Node
	)

	if tb.Resolver != nil {
		nodes = append(nodes, tb.Resolver)
	}

	if tb.Client != nil {
		nodes = append(nodes, tb.Client)
	}

	result = multierror.Append(result, node.StopAll(nodes...))

	if tb.Graph != nil {
		result = multierror.Append(result, tb.Graph.Close())
	}

	result = multierror.Append(result, tb.Network.Close())

	return result.ErrorOrNil()
}

func (tb *Testbed) String() string {
	if tb.Graph == nil || tb.Resolver == nil {
		return tb.Network.Name()
	}

	return fmt.Sprintf("%s %s, resolver %s", tb.Graph, tb.sign, tb.Resolver.Addr())
}
