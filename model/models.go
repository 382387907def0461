package model

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// ResponseType represents the type of the response ENUM(
// RESOLVED // the response was resolved iteratively from the authoritative servers
// SECURE // the response was validated with DNSSEC
// BOGUS // DNSSEC validation failed
// REFUSED // the query was refused
// FAILED // the resolution failed
// )
type ResponseType int

// Response represents the response of a DNS query
type Response struct {
	Res    *dns.Msg
	Reason string
	RType  ResponseType
}

// RequestProtocol represents the server protocol ENUM(
// TCP // is the TPC protocol
// UDP // is the UDP protocol
// )
type RequestProtocol uint8

// Request represents client's DNS request
type Request struct {
	ClientIP  netip.Addr
	Protocol  RequestProtocol
	Req       *dns.Msg
	Log       *logrus.Entry
	RequestTS time.Time
}

// Question returns the first question of the request
func (r *Request) Question() dns.Question {
	if r == nil || r.Req == nil || len(r.Req.Question) == 0 {
		return dns.Question{}
	}

	return r.Req.Question[0]
}

// ToExtendedErrorCode maps a response type to an RFC 8914 extended error code
func (t ResponseType) ToExtendedErrorCode() uint16 {
	switch t {
	case ResponseTypeBOGUS:
		return dns.ExtendedErrorCodeDNSBogus
	case ResponseTypeREFUSED:
		return dns.ExtendedErrorCodeProhibited
	case ResponseTypeFAILED:
		return dns.ExtendedErrorCodeNoReachableAuthority
	default:
		return dns.ExtendedErrorCodeOther
	}
}
