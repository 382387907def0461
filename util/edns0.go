package util

import (
	"slices"

	"github.com/miekg/dns"
)

// EDNS0Option is an interface for all EDNS0 options as type constraint for generics.
type EDNS0Option interface {
	*dns.EDNS0_SUBNET | *dns.EDNS0_EDE | *dns.EDNS0_LOCAL | *dns.EDNS0_NSID | *dns.EDNS0_COOKIE | *dns.EDNS0_UL
	Option() uint16
}

// RemoveEdns0Record removes the OPT record from the Extra section of the given message.
func RemoveEdns0Record(msg *dns.Msg) bool {
	if msg == nil || msg.IsEdns0() == nil || len(msg.Extra) == 0 {
		return false
	}

	for i, rr := range msg.Extra {
		if rr.Header().Rrtype == dns.TypeOPT {
			msg.Extra = slices.Delete(msg.Extra, i, i+1)

			return true
		}
	}

	return false
}

// GetEdns0Record returns the OPT record of the message, adding an empty one if it is missing.
func GetEdns0Record(msg *dns.Msg) *dns.OPT {
	if msg == nil {
		return nil
	}

	if res := msg.IsEdns0(); res != nil {
		return res
	}

	res := new(dns.OPT)
	res.Hdr.Name = "."
	res.Hdr.Rrtype = dns.TypeOPT
	msg.Extra = append(msg.Extra, res)

	return res
}

// GetEdns0Option returns the first option of type T or nil. The message is not modified.
func GetEdns0Option[T EDNS0Option](msg *dns.Msg) T {
	if msg == nil {
		return nil
	}

	opt := msg.IsEdns0()
	if opt == nil {
		return nil
	}

	for _, o := range opt.Option {
		if t, ok := o.(T); ok {
			return t
		}
	}

	return nil
}

// SetEdns0Option adds the given option to the OPT record in the Extra section of the
// given message.
// If the option already exists, it will be replaced.
func SetEdns0Option(msg *dns.Msg, opt dns.EDNS0) {
	if msg == nil {
		return
	}

	optRecord := GetEdns0Record(msg)

	newOpts := make([]dns.EDNS0, 0, len(optRecord.Option)+1)

	for _, o := range optRecord.Option {
		if o.Option() != opt.Option() {
			newOpts = append(newOpts, o)
		}
	}

	newOpts = append(newOpts, opt)
	optRecord.Option = newOpts
}

// IsDNSSECOK reports whether the message carries an OPT record with the DO bit
func IsDNSSECOK(msg *dns.Msg) bool {
	if msg == nil {
		return false
	}

	opt := msg.IsEdns0()

	return opt != nil && opt.Do()
}

// EchoEdns0 adds an OPT record to resp mirroring the DO bit and UDP size of req.
// Responses to queries without EDNS get no OPT record.
func EchoEdns0(req, resp *dns.Msg, udpSize uint16) {
	reqOpt := req.IsEdns0()
	if reqOpt == nil {
		return
	}

	opt := GetEdns0Record(resp)
	opt.SetUDPSize(udpSize)
	opt.SetDo(reqOpt.Do())
}
