package network

import (
	"bytes"
	"encoding/binary"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
)

// udpConn taps a UDP socket. It embeds *net.UDPConn so it still is a net.PacketConn, but is not
// a *net.UDPConn itself: the DNS server falls back to ReadFrom and WriteTo which are tapped here.
type udpConn struct {
	*net.UDPConn
	ep    *Endpoint
	local netip.AddrPort
}

func newUDPConn(ep *Endpoint, conn *net.UDPConn) *udpConn {
	return &udpConn{
		UDPConn: conn,
		ep:      ep,
		local:   toAddrPort(conn.LocalAddr()),
	}
}

func (c *udpConn) Read(b []byte) (int, error) {
	n, err := c.UDPConn.Read(b)
	if n > 0 {
		c.ep.received(config.TransportUdp, toAddrPort(c.RemoteAddr()), c.local, b[:n])
	}

	return n, err
}

func (c *udpConn) Write(b []byte) (int, error) {
	n, err := c.UDPConn.Write(b)
	if n > 0 {
		c.ep.sent(config.TransportUdp, c.local, toAddrPort(c.RemoteAddr()), b[:n])
	}

	return n, err
}

func (c *udpConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := c.UDPConn.ReadFrom(b)
	if n > 0 && addr != nil {
		c.ep.received(config.TransportUdp, toAddrPort(addr), c.local, b[:n])
	}

	return n, addr, err
}

func (c *udpConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := c.UDPConn.WriteTo(b, addr)
	if n > 0 {
		c.ep.sent(config.TransportUdp, c.local, toAddrPort(addr), b[:n])
	}

	return n, err
}

func (c *udpConn) Close() error {
	c.ep.untrack(c)

	return c.UDPConn.Close()
}

// tcpConn taps a TCP stream and reassembles the length framed DNS messages of both directions
type tcpConn struct {
	net.Conn
	ep     *Endpoint
	local  netip.AddrPort
	remote netip.AddrPort
	in     framer
	out    framer
}

func newTCPConn(ep *Endpoint, conn net.Conn) *tcpConn {
	return &tcpConn{
		Conn:   conn,
		ep:     ep,
		local:  toAddrPort(conn.LocalAddr()),
		remote: toAddrPort(conn.RemoteAddr()),
	}
}

func (c *tcpConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		for _, msg := range c.in.feed(b[:n]) {
			c.ep.received(config.TransportTcp, c.remote, c.local, msg)
		}
	}

	return n, err
}

func (c *tcpConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		for _, msg := range c.out.feed(b[:n]) {
			c.ep.sent(config.TransportTcp, c.local, c.remote, msg)
		}
	}

	return n, err
}

func (c *tcpConn) Close() error {
	c.ep.untrack(c)

	return c.Conn.Close()
}

type tcpListener struct {
	net.Listener
	ep *Endpoint
}

func (l *tcpListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	c := newTCPConn(l.ep, conn)

	if err := l.ep.track(c); err != nil {
		return nil, err
	}

	return c, nil
}

func (l *tcpListener) Close() error {
	l.ep.untrack(l)

	return l.Listener.Close()
}

// framer splits a TCP byte stream into DNS messages with two byte length prefix
type framer struct {
	mu  sync.Mutex
	buf []byte
}

func (f *framer) feed(b []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, b...)

	var msgs [][]byte

	for len(f.buf) >= 2 {
		size := int(binary.BigEndian.Uint16(f.buf))
		if len(f.buf) < 2+size {
			break
		}

		msg := make([]byte, size)
		copy(msg, f.buf[2:2+size])

		msgs = append(msgs, msg)
		f.buf = f.buf[2+size:]
	}

	return msgs
}

// sent publishes every written message
func (e *Endpoint) sent(transport config.Transport, src, dst netip.AddrPort, payload []byte) {
	e.nw.publish(Packet{
		Time:      time.Now(),
		Transport: transport,
		Src:       src,
		Dst:       dst,
		Payload:   bytes.Clone(payload),
	})
}

// received publishes messages from peers whose writes are not tapped by this network
func (e *Endpoint) received(transport config.Transport, src, dst netip.AddrPort, payload []byte) {
	if e.nw.isInProcess(src.Addr()) {
		return
	}

	e.nw.publish(Packet{
		Time:      time.Now(),
		Transport: transport,
		Src:       src,
		Dst:       dst,
		Payload:   bytes.Clone(payload),
	})
}

func toAddrPort(addr net.Addr) netip.AddrPort {
	var ap netip.AddrPort

	switch a := addr.(type) {
	case *net.UDPAddr:
		ap = a.AddrPort()
	case *net.TCPAddr:
		ap = a.AddrPort()
	default:
		if addr == nil {
			return netip.AddrPort{}
		}

		ap, _ = netip.ParseAddrPort(addr.String())
	}

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
