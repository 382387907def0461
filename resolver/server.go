package resolver

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
	"github.com/0xERR0R/dnstestbed/resolver/dnssec"
	"github.com/0xERR0R/dnstestbed/server"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/sirupsen/logrus"
)

const resolverLoggerPrefix = "resolver"

// Option customizes a resolver server
type Option func(*options)

type options struct {
	trustAnchor *signer.TrustAnchor
	metrics     config.Metrics
	exchanger   Exchanger
}

// WithTrustAnchor enables validation with the given anchor. The anchor is shared, not copied.
func WithTrustAnchor(anchor *signer.TrustAnchor) Option {
	return func(o *options) {
		o.trustAnchor = anchor
	}
}

// WithMetrics records the queries answered by the server
func WithMetrics(cfg config.Metrics) Option {
	return func(o *options) {
		o.metrics = cfg
	}
}

// WithExchanger replaces the exchanger sending queries to the name servers
func WithExchanger(exchanger Exchanger) Option {
	return func(o *options) {
		o.exchanger = exchanger
	}
}

// Server is a recursive resolver node serving the resolver chain on the network
type Server struct {
	ep          *network.Endpoint
	logger      *logrus.Entry
	srv         *server.Server
	chain       ChainedResolver
	trustAnchor *signer.TrustAnchor
	cancel      context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewServer allocates an address on nw and builds the resolver chain iterating from root:
// metrics, query log, recursion, DNSSEC validation and iterative resolution.
// Nothing is served before Start.
func NewServer(nw *network.Network, root model.RootHint, cfg config.Resolver, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	ep, err := nw.Allocate()
	if err != nil {
		return nil, err
	}

	s := &Server{
		ep:          ep,
		logger:      log.NodeLog(resolverLoggerPrefix, ep.Addr()),
		trustAnchor: o.trustAnchor,
	}

	if o.exchanger == nil {
		o.exchanger = NewEndpointExchanger(ep, cfg.Timeout.ToDuration())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	ctx, _ = log.NewCtx(ctx, s.logger)

	chain, err := s.createChain(ctx, nw, root, cfg, o)
	if err != nil {
		cancel()
		ep.Release()

		return nil, err
	}

	s.chain = chain
	s.srv = server.New(ep, server.NewResolvingHandler(chain, s.logger), s.logger)

	return s, nil
}

func (s *Server) createChain(
	ctx context.Context, nw *network.Network, root model.RootHint, cfg config.Resolver, o options,
) (ChainedResolver, error) {
	iterative, err := NewIterativeResolver(cfg, []model.RootHint{root}, nw.Port(), o.exchanger)
	if err != nil {
		return nil, err
	}

	var anchors []*signer.TrustAnchor
	if o.trustAnchor != nil {
		anchors = append(anchors, o.trustAnchor)
	}

	store, err := dnssec.NewTrustAnchorStore(anchors...)
	if err != nil {
		return nil, err
	}

	dnssecResolver, err := NewDNSSECResolver(ctx, cfg.DNSSEC, store, iterative)
	if err != nil {
		return nil, err
	}

	queryLogging, err := NewQueryLoggingResolver(ctx, cfg.QueryLog)
	if err != nil {
		return nil, err
	}

	return Chain(
		NewMetricsResolver(o.metrics),
		queryLogging,
		NewRecursionResolver(),
		dnssecResolver,
		iterative,
	), nil
}

// Role implements node.Node
func (s *Server) Role() node.Role {
	return node.RoleResolver
}

// Addr implements node.Node
func (s *Server) Addr() netip.Addr {
	return s.ep.Addr()
}

// AddrPort returns the address the resolver answers on
func (s *Server) AddrPort() netip.AddrPort {
	return s.ep.AddrPort()
}

// Endpoint returns the network endpoint of the resolver
func (s *Server) Endpoint() *network.Endpoint {
	return s.ep
}

// Validates implements node.Validating
func (s *Server) Validates() bool {
	var validates bool

	ForEach(s.chain, func(r Resolver) {
		if d, ok := r.(*DNSSECResolver); ok {
			validates = d.IsEnabled()
		}
	})

	return validates
}

// TrustAnchor returns the anchor the resolver was configured with
func (s *Server) TrustAnchor() (*signer.TrustAnchor, bool) {
	return s.trustAnchor, s.trustAnchor != nil
}

// Resolver returns the head of the resolver chain
func (s *Server) Resolver() Resolver {
	return s.chain
}

// LogConfig logs the configuration of every resolver in the chain
func (s *Server) LogConfig(logger *logrus.Entry) {
	ForEach(s.chain, func(r Resolver) {
		LogResolverConfig(r, logger)
	})
}

// Start serves the resolver over UDP and TCP
func (s *Server) Start(ctx context.Context) error {
	if err := s.srv.Start(ctx); err != nil {
		return fmt.Errorf("can't start resolver on %s: %w", s.Addr(), err)
	}

	s.logger.Debugf("resolving (validating: %t)", s.Validates())
	node.PublishStarted(s)

	return nil
}

// Stop implements node.Node
func (s *Server) Stop() error {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()

		return nil
	}

	s.stopped = true
	s.mu.Unlock()

	wasRunning := s.srv.IsRunning()
	err := s.srv.Stop()

	s.cancel()
	s.ep.Release()

	if wasRunning {
		node.PublishStopped(s)
	}

	return err
}

func (s *Server) String() string {
	return fmt.Sprintf("resolver %s", s.Addr())
}
