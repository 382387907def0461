package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

// ErrNoResponse is returned if a query was not answered
var ErrNoResponse = errors.New("no response")

// Dialer opens connections on the network, network.Endpoint implements it
type Dialer interface {
	Dial(ctx context.Context, transport config.Transport, dst netip.AddrPort) (net.Conn, error)
}

// Settings are the protocol flags of one query
type Settings struct {
	Recurse          bool
	DNSSEC           bool
	CheckingDisabled bool
	AuthenticData    bool
	Transport        config.Transport
	Timeout          time.Duration
	UDPSize          uint16
}

// DefaultSettings returns settings without any flag set, using transport, timeout and buffer size of cfg
func DefaultSettings(cfg config.Client) Settings {
	return Settings{
		Transport: cfg.Transport,
		Timeout:   cfg.Timeout.ToDuration(),
		UDPSize:   cfg.UDPSize,
	}
}

// WithRecurse sets the RD flag
func (s Settings) WithRecurse() Settings {
	s.Recurse = true

	return s
}

// WithDNSSEC sets the DO bit
func (s Settings) WithDNSSEC() Settings {
	s.DNSSEC = true

	return s
}

// WithCheckingDisabled sets the CD flag
func (s Settings) WithCheckingDisabled() Settings {
	s.CheckingDisabled = true

	return s
}

// WithAuthenticData sets the AD flag
func (s Settings) WithAuthenticData() Settings {
	s.AuthenticData = true

	return s
}

// WithTransport selects UDP or TCP
func (s Settings) WithTransport(transport config.Transport) Settings {
	s.Transport = transport

	return s
}

// Query is one question sent to one server
type Query struct {
	Server   netip.AddrPort
	Type     dns.Type
	Name     model.FQDN
	Settings Settings
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s @%s", q.Type, q.Name, q.Server)
}

// NewRequest creates the message sent for q. An OPT record is added only if DO is set
// or a UDP size above the classic limit is requested.
func NewRequest(q Query) *dns.Msg {
	msg := util.NewMsgWithQuestion(q.Name.String(), q.Type)
	msg.RecursionDesired = q.Settings.Recurse
	msg.CheckingDisabled = q.Settings.CheckingDisabled
	msg.AuthenticatedData = q.Settings.AuthenticData

	if q.Settings.DNSSEC || q.Settings.UDPSize > dns.MinMsgSize {
		size := q.Settings.UDPSize
		if size < dns.MinMsgSize {
			size = dns.MinMsgSize
		}

		msg.SetEdns0(size, q.Settings.DNSSEC)
	}

	return msg
}

// Exchange sends q once over dialer and decodes the response.
// Every transport failure or timeout is reported as ErrNoResponse, there is no retry.
func Exchange(ctx context.Context, dialer Dialer, q Query) (*Response, error) {
	msg, err := ExchangeMsg(ctx, dialer, q.Settings, q.Server, NewRequest(q))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q, err)
	}

	return NewResponse(msg), nil
}

// ExchangeMsg sends req to server and returns the raw response
func ExchangeMsg(
	ctx context.Context, dialer Dialer, settings Settings, server netip.AddrPort, req *dns.Msg,
) (*dns.Msg, error) {
	if settings.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	conn, err := dialer.Dial(ctx, settings.Transport, server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	defer conn.Close()

	c := &dns.Client{
		Net:     settings.Transport.String(),
		Timeout: settings.Timeout,
		UDPSize: settings.UDPSize,
	}

	resp, _, err := c.ExchangeWithConnContext(ctx, req, &dns.Conn{Conn: conn, UDPSize: settings.UDPSize})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	return resp, nil
}
