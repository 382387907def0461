package network

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/miekg/dns"
)

// Packet is one DNS message seen on the network
type Packet struct {
	Time      time.Time
	Transport config.Transport
	Src       netip.AddrPort
	Dst       netip.AddrPort
	// Payload is the DNS message without TCP length framing
	Payload []byte
}

func (p Packet) String() string {
	return fmt.Sprintf("%s %s -> %s (%d bytes)", p.Transport, p.Src, p.Dst, len(p.Payload))
}

// Subscription delivers packets sent or received by one address
type Subscription struct {
	nw   *Network
	id   uint64
	addr netip.Addr
	fn   func(Packet)
}

// Cancel stops the delivery of packets. It is safe to call multiple times.
func (s *Subscription) Cancel() {
	s.nw.subMu.Lock()
	defer s.nw.subMu.Unlock()

	delete(s.nw.subs, s.id)
}

// Subscribe registers fn for every packet whose source or destination is addr.
// fn is called synchronously from the socket goroutine and must not block.
func (n *Network) Subscribe(addr netip.Addr, fn func(Packet)) *Subscription {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	n.nextID++

	s := &Subscription{
		nw:   n,
		id:   n.nextID,
		addr: addr.Unmap(),
		fn:   fn,
	}

	n.subs[s.id] = s

	return s
}

func (n *Network) publish(p Packet) {
	if log.PacketTracing() {
		n.logger.Trace(packetSummary(p))
	}

	n.subMu.RLock()

	targets := make([]*Subscription, 0, 2)

	for _, s := range n.subs {
		if s.addr == p.Src.Addr() || s.addr == p.Dst.Addr() {
			targets = append(targets, s)
		}
	}

	n.subMu.RUnlock()

	for _, s := range targets {
		s.fn(p)
	}
}

func packetSummary(p Packet) string {
	msg := new(dns.Msg)
	if err := msg.Unpack(p.Payload); err != nil || len(msg.Question) == 0 {
		return p.String()
	}

	kind := "query"
	if msg.Response {
		kind = dns.RcodeToString[msg.Rcode]
	}

	return fmt.Sprintf("%s %s %s %s", p, kind, dns.Type(msg.Question[0].Qtype), msg.Question[0].Name)
}
