package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	maxUDPBufferSize = 65535
)

var (
	// ErrAlreadyStarted is returned by Start on a running server
	ErrAlreadyStarted = errors.New("server already started")

	// ErrStopped is returned by Start after the server was stopped
	ErrStopped = errors.New("server stopped")
)

// Server serves DNS over UDP and TCP on one endpoint of a network
type Server struct {
	ep      *network.Endpoint
	handler dns.Handler
	logger  *logrus.Entry

	mu      sync.Mutex
	servers []*dns.Server
	stopped bool
}

// New creates a server for handler on the endpoint. Nothing is bound before Start.
func New(ep *network.Endpoint, handler dns.Handler, logger *logrus.Entry) *Server {
	return &Server{
		ep:      ep,
		handler: handler,
		logger:  logger,
	}
}

// Endpoint returns the endpoint the server is bound to
func (s *Server) Endpoint() *network.Endpoint {
	return s.ep
}

// Start binds the UDP and TCP sockets and returns once both listeners are serving
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if s.servers != nil {
		return ErrAlreadyStarted
	}

	servers, err := s.createServers()
	if err != nil {
		return err
	}

	started := make(chan struct{}, len(servers))
	errCh := make(chan error, len(servers))

	for _, srv := range servers {
		srv := srv
		srv.NotifyStartedFunc = func() {
			started <- struct{}{}
		}

		go func() {
			if err := srv.ActivateAndServe(); err != nil {
				errCh <- fmt.Errorf("start %s listener failed: %w", srv.Net, err)
			}
		}()
	}

	for range servers {
		select {
		case <-started:
		case err := <-errCh:
			abort(servers)

			return err
		case <-ctx.Done():
			abort(servers)

			return ctx.Err()
		}
	}

	s.servers = servers

	s.logger.Debugf("DNS server is up and running on %s", s.ep.AddrPort())

	return nil
}

func (s *Server) createServers() ([]*dns.Server, error) {
	pc, err := s.ep.ListenUDP()
	if err != nil {
		return nil, err
	}

	l, err := s.ep.ListenTCP()
	if err != nil {
		util.LogOnErrorWithEntry(s.logger, "can't close udp socket: ", pc.Close())

		return nil, err
	}

	return []*dns.Server{
		createUDPServer(pc, s.handler),
		createTCPServer(l, s.handler),
	}, nil
}

func createUDPServer(pc net.PacketConn, handler dns.Handler) *dns.Server {
	return &dns.Server{
		PacketConn: pc,
		Net:        "udp",
		Handler:    handler,
		UDPSize:    maxUDPBufferSize,
	}
}

func createTCPServer(l net.Listener, handler dns.Handler) *dns.Server {
	return &dns.Server{
		Listener: l,
		Net:      "tcp",
		Handler:  handler,
	}
}

// Stop shuts the listeners down. Subsequent calls have no effect.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.stopped = true

	servers := s.servers
	s.servers = nil

	if err := shutdown(servers); err != nil {
		return fmt.Errorf("stop %s failed: %w", s.ep.AddrPort(), err)
	}

	s.logger.Debugf("DNS server on %s stopped", s.ep.AddrPort())

	return nil
}

// IsRunning returns true between a successful Start and Stop
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.servers != nil
}

func shutdown(servers []*dns.Server) error {
	var result *multierror.Error

	for _, srv := range servers {
		if err := srv.Shutdown(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("stop %s listener failed: %w", srv.Net, err))
		}
	}

	return result.ErrorOrNil()
}

// abort stops servers that may not have finished starting and closes their sockets
func abort(servers []*dns.Server) {
	for _, srv := range servers {
		_ = srv.Shutdown()

		if srv.PacketConn != nil {
			_ = srv.PacketConn.Close()
		}

		if srv.Listener != nil {
			_ = srv.Listener.Close()
		}
	}
}
