package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/util"
)

var errExternal = errors.New("endpoint is served outside of this process")

// Endpoint is one allocated address of a network. All sockets created through it are tapped.
type Endpoint struct {
	nw       *Network
	addr     netip.Addr
	external bool

	mu       sync.Mutex
	sockets  map[io.Closer]struct{}
	released bool
}

// Addr returns the allocated address
func (e *Endpoint) Addr() netip.Addr {
	return e.addr
}

// AddrPort returns the address DNS is served on
func (e *Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.addr, e.nw.port)
}

// Network returns the network the endpoint belongs to
func (e *Endpoint) Network() *Network {
	return e.nw
}

// IsExternal returns true if the address is used by a node outside of this process
func (e *Endpoint) IsExternal() bool {
	return e.external
}

func (e *Endpoint) String() string {
	return e.addr.String()
}

// ListenUDP opens the UDP socket of the node's DNS service
func (e *Endpoint) ListenUDP() (net.PacketConn, error) {
	if err := e.checkUsable(); err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(e.AddrPort()))
	if err != nil {
		return nil, fmt.Errorf("can't listen on udp %s: %w", e.AddrPort(), err)
	}

	c := newUDPConn(e, conn)

	if err := e.track(c); err != nil {
		return nil, err
	}

	return c, nil
}

// ListenTCP opens the TCP listener of the node's DNS service
func (e *Endpoint) ListenTCP() (net.Listener, error) {
	if err := e.checkUsable(); err != nil {
		return nil, err
	}

	l, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(e.AddrPort()))
	if err != nil {
		return nil, fmt.Errorf("can't listen on tcp %s: %w", e.AddrPort(), err)
	}

	tl := &tcpListener{Listener: l, ep: e}

	if err := e.track(tl); err != nil {
		return nil, err
	}

	return tl, nil
}

// Dial opens a connection from the endpoint's address to dst
func (e *Endpoint) Dial(ctx context.Context, transport config.Transport, dst netip.AddrPort) (net.Conn, error) {
	if err := e.checkUsable(); err != nil {
		return nil, err
	}

	switch transport {
	case config.TransportUdp:
		d := net.Dialer{LocalAddr: net.UDPAddrFromAddrPort(netip.AddrPortFrom(e.addr, 0))}

		conn, err := d.DialContext(ctx, "udp", dst.String())
		if err != nil {
			return nil, fmt.Errorf("can't dial udp %s: %w", dst, err)
		}

		c := newUDPConn(e, conn.(*net.UDPConn))

		if err := e.track(c); err != nil {
			return nil, err
		}

		return c, nil

	case config.TransportTcp:
		d := net.Dialer{LocalAddr: net.TCPAddrFromAddrPort(netip.AddrPortFrom(e.addr, 0))}

		conn, err := d.DialContext(ctx, "tcp", dst.String())
		if err != nil {
			return nil, fmt.Errorf("can't dial tcp %s: %w", dst, err)
		}

		c := newTCPConn(e, conn)

		if err := e.track(c); err != nil {
			return nil, err
		}

		return c, nil
	}

	return nil, fmt.Errorf("unsupported transport %s", transport)
}

// Release closes every socket of the endpoint and returns the address to the network. Subsequent calls have no effect.
func (e *Endpoint) Release() {
	e.mu.Lock()

	if e.released {
		e.mu.Unlock()

		return
	}

	e.released = true

	sockets := e.sockets
	e.sockets = nil

	e.mu.Unlock()

	for s := range sockets {
		util.LogOnErrorWithEntry(e.nw.logger, fmt.Sprintf("can't close socket of %s: ", e.addr), s.Close())
	}

	if e.nw.release(e) {
		e.nw.logger.WithField("addr", e.addr).Debug("address released")
	}
}

func (e *Endpoint) checkUsable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return fmt.Errorf("endpoint %s: %w", e.addr, net.ErrClosed)
	}

	if e.external {
		return fmt.Errorf("endpoint %s: %w", e.addr, errExternal)
	}

	return nil
}

// track registers the socket for Release; it is closed immediately if the endpoint was released meanwhile
func (e *Endpoint) track(s io.Closer) error {
	e.mu.Lock()

	if e.released {
		e.mu.Unlock()

		_ = s.Close()

		return fmt.Errorf("endpoint %s: %w", e.addr, net.ErrClosed)
	}

	if e.sockets == nil {
		e.sockets = make(map[io.Closer]struct{})
	}

	e.sockets[s] = struct{}{}

	e.mu.Unlock()

	return nil
}

func (e *Endpoint) untrack(s io.Closer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sockets, s)
}
