package client

import (
	"fmt"
	"strings"

	"github.com/0xERR0R/dnstestbed/record"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

// Status is the response code of a response
type Status int

func (s Status) IsNoError() bool {
	return s == dns.RcodeSuccess
}

func (s Status) IsNXDomain() bool {
	return s == dns.RcodeNameError
}

func (s Status) IsServFail() bool {
	return s == dns.RcodeServerFailure
}

func (s Status) IsRefused() bool {
	return s == dns.RcodeRefused
}

func (s Status) String() string {
	if name, ok := dns.RcodeToString[int(s)]; ok {
		return name
	}

	return fmt.Sprintf("RCODE%d", int(s))
}

// Flags are the header flags of a response
type Flags struct {
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	AuthenticData      bool
	CheckingDisabled   bool
}

func (f Flags) String() string {
	var res []string

	for _, flag := range []struct {
		set  bool
		name string
	}{
		{f.Authoritative, "aa"},
		{f.Truncated, "tc"},
		{f.RecursionDesired, "rd"},
		{f.RecursionAvailable, "ra"},
		{f.AuthenticData, "ad"},
		{f.CheckingDisabled, "cd"},
	} {
		if flag.set {
			res = append(res, flag.name)
		}
	}

	return strings.Join(res, " ")
}

// ExtendedError is the EDE option of a response
type ExtendedError struct {
	Code uint16
	Text string
}

// Response is a decoded DNS response
type Response struct {
	Status     Status
	Flags      Flags
	Answer     []record.Record
	Authority  []record.Record
	Additional []record.Record
	// ExtendedError is nil if the response has no EDE option
	ExtendedError *ExtendedError

	msg *dns.Msg
}

// NewResponse decodes msg
func NewResponse(msg *dns.Msg) *Response {
	res := &Response{
		Status: Status(msg.Rcode),
		Flags: Flags{
			Authoritative:      msg.Authoritative,
			Truncated:          msg.Truncated,
			RecursionDesired:   msg.RecursionDesired,
			RecursionAvailable: msg.RecursionAvailable,
			AuthenticData:      msg.AuthenticatedData,
			CheckingDisabled:   msg.CheckingDisabled,
		},
		Answer:     record.FromRRs(msg.Answer),
		Authority:  record.FromRRs(msg.Ns),
		Additional: record.FromRRs(msg.Extra),
		msg:        msg,
	}

	if ede := util.GetEdns0Option[*dns.EDNS0_EDE](msg); ede != nil {
		res.ExtendedError = &ExtendedError{Code: ede.InfoCode, Text: ede.ExtraText}
	}

	return res
}

// DNSMsg returns the raw message
func (r *Response) DNSMsg() *dns.Msg {
	return r.msg
}

func (r *Response) String() string {
	return fmt.Sprintf("%s [%s] %d answer(s)", r.Status, r.Flags, len(r.Answer))
}
