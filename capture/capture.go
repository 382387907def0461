package capture

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/record"
	"github.com/miekg/dns"
)

// DirectionKind of a captured message relative to the observed address ENUM(
// incoming // message received by the observed address
// outgoing // message sent by the observed address
// )
type DirectionKind uint8

// Direction of a captured message and the peer on the other end
type Direction struct {
	Kind DirectionKind
	Peer netip.AddrPort
}

// Incoming returns the direction of a message received from source
func Incoming(source netip.AddrPort) Direction {
	return Direction{Kind: DirectionKindIncoming, Peer: source}
}

// Outgoing returns the direction of a message sent to destination
func Outgoing(destination netip.AddrPort) Direction {
	return Direction{Kind: DirectionKindOutgoing, Peer: destination}
}

func (d Direction) IsIncoming() bool {
	return d.Kind == DirectionKindIncoming
}

func (d Direction) IsOutgoing() bool {
	return d.Kind == DirectionKindOutgoing
}

// Source returns the sender of an incoming message
func (d Direction) Source() (netip.AddrPort, bool) {
	return d.Peer, d.IsIncoming()
}

// Destination returns the receiver of an outgoing message
func (d Direction) Destination() (netip.AddrPort, bool) {
	return d.Peer, d.IsOutgoing()
}

func (d Direction) String() string {
	if d.IsOutgoing() {
		return fmt.Sprintf("outgoing to %s", d.Peer)
	}

	return fmt.Sprintf("incoming from %s", d.Peer)
}

// Question is a normalized query: the name is lower-cased and fully qualified
type Question struct {
	Name model.FQDN
	Type dns.Type
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s", q.Type, q.Name)
}

// Message is a decoded DNS message
type Message struct {
	msg *dns.Msg
}

// NewMessage wraps msg
func NewMessage(msg *dns.Msg) *Message {
	return &Message{msg: msg}
}

// DNSMsg returns the underlying message
func (m *Message) DNSMsg() *dns.Msg {
	return m.msg
}

func (m *Message) ID() uint16 {
	return m.msg.Id
}

func (m *Message) IsResponse() bool {
	return m.msg.Response
}

func (m *Message) Rcode() int {
	return m.msg.Rcode
}

// Queries returns the questions of the message. Questions with an invalid name are skipped.
func (m *Message) Queries() []Question {
	result := make([]Question, 0, len(m.msg.Question))

	for _, q := range m.msg.Question {
		name, err := model.NewFQDN(q.Name)
		if err != nil {
			continue
		}

		result = append(result, Question{Name: name, Type: dns.Type(q.Qtype)})
	}

	return result
}

// HasQuery returns true if the message asks for the given type and name
func (m *Message) HasQuery(qtype dns.Type, name model.FQDN) bool {
	for _, q := range m.Queries() {
		if q.Type == qtype && q.Name == name {
			return true
		}
	}

	return false
}

// Answer returns the typed records of the answer section
func (m *Message) Answer() []record.Record {
	return record.FromRRs(m.msg.Answer)
}

// Authority returns the typed records of the authority section
func (m *Message) Authority() []record.Record {
	return record.FromRRs(m.msg.Ns)
}

func (m *Message) String() string {
	kind := "query"
	if m.msg.Response {
		kind = dns.RcodeToString[m.msg.Rcode]
	}

	queries := m.Queries()
	if len(queries) == 0 {
		return fmt.Sprintf("%s #%d", kind, m.msg.Id)
	}

	return fmt.Sprintf("%s #%d %s", kind, m.msg.Id, queries[0])
}

// Capture is one message sent or received by the observed address
type Capture struct {
	Time      time.Time
	Transport config.Transport
	Direction Direction
	Message   *Message
}

// IsQuery returns true for messages that are no response
func (c Capture) IsQuery() bool {
	return !c.Message.IsResponse()
}

func (c Capture) String() string {
	return fmt.Sprintf("%s %s %s %s", c.Time.Format(time.StampMicro), c.Transport, c.Direction, c.Message)
}
