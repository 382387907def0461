package helpertest

import (
	"fmt"
	"os"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"

	"github.com/miekg/dns"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/gcustom"
	"github.com/onsi/gomega/types"
)

const (
	A      = dns.Type(dns.TypeA)
	AAAA   = dns.Type(dns.TypeAAAA)
	CNAME  = dns.Type(dns.TypeCNAME)
	NS     = dns.Type(dns.TypeNS)
	SOA    = dns.Type(dns.TypeSOA)
	DS     = dns.Type(dns.TypeDS)
	DNSKEY = dns.Type(dns.TypeDNSKEY)
	RRSIG  = dns.Type(dns.TypeRRSIG)
	NSEC   = dns.Type(dns.TypeNSEC)
	TXT    = dns.Type(dns.TypeTXT)
)

// TestPort is the unprivileged port the test topologies serve DNS on
const TestPort = 10053

// Subnet blocks of the test suites. Packages run in parallel, so every suite gets its own block.
const (
	BlockNetwork uint8 = 10 * (iota + 1)
	BlockNameServer
	BlockResolver
	BlockClient
	BlockCapture
	BlockGraph
	BlockConformance
	BlockCmd
	BlockE2E
	BlockContainer
	BlockServer
	BlockValidator
)

// NetworkConfig returns an address space for the current testing process: each package uses
// its own block and each ginkgo parallel process a /24 within it
func NetworkConfig(block uint8) config.Network {
	return config.Network{
		Subnet: fmt.Sprintf("127.53.%d.0/24", int(block)+ginkgo.GinkgoParallelProcess()-1),
		Port:   TestPort,
	}
}

// TempFile creates temp file with passed data
func TempFile(data string) *os.File {
	f, err := os.CreateTemp("", "prefix")
	if err != nil {
		log.Log().Fatal(err)
	}

	_, err = f.WriteString(data)
	if err != nil {
		log.Log().Fatal(err)
	}

	ginkgo.DeferCleanup(func() { _ = os.Remove(f.Name()) })

	return f
}

func toMsg(actual any) (*dns.Msg, error) {
	switch m := actual.(type) {
	case *model.Response:
		return m.Res, nil
	case *dns.Msg:
		return m, nil
	case interface{ DNSMsg() *dns.Msg }:
		return m.DNSMsg(), nil
	}

	return nil, fmt.Errorf("not a DNS message: %T", actual)
}

// ToAnswer returns the answer section
func ToAnswer(actual any) ([]dns.RR, error) {
	msg, err := toMsg(actual)
	if err != nil {
		return nil, err
	}

	return msg.Answer, nil
}

// HaveNoAnswer matches messages with an empty answer section
func HaveNoAnswer() types.GomegaMatcher {
	return gomega.WithTransform(ToAnswer, gomega.BeEmpty())
}

func HaveReason(reason string) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(m *model.Response) (bool, error) {
		return m.Reason == reason, nil
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} have reason:\n{{format .Data 1}}",
		reason,
	)
}

func HaveResponseType(c model.ResponseType) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(m *model.Response) (bool, error) {
		return m.RType == c, nil
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} have ResponseType:\n{{format .Data 1}}",
		c.String(),
	)
}

func HaveReturnCode(code int) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(actual any) (bool, error) {
		msg, err := toMsg(actual)
		if err != nil {
			return false, err
		}

		return msg.Rcode == code, nil
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} have RCode:\n{{format .Data 1}}",
		fmt.Sprintf("%d (%s)", code, dns.RcodeToString[code]),
	)
}

// HaveFlag matches messages with the given header flag set: "aa", "tc", "rd", "ra", "ad" or "cd"
func HaveFlag(flag string) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(actual any) (bool, error) {
		msg, err := toMsg(actual)
		if err != nil {
			return false, err
		}

		switch flag {
		case "aa":
			return msg.Authoritative, nil
		case "tc":
			return msg.Truncated, nil
		case "rd":
			return msg.RecursionDesired, nil
		case "ra":
			return msg.RecursionAvailable, nil
		case "ad":
			return msg.AuthenticatedData, nil
		case "cd":
			return msg.CheckingDisabled, nil
		}

		return false, fmt.Errorf("unknown flag '%s'", flag)
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} have flag:\n{{format .Data 1}}",
		flag,
	)
}

// HaveEdnsOption checks if the given message contains an EDNS0 record with the given option code.
func HaveEdnsOption(code uint16) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(actual any) (bool, error) {
		msg, err := toMsg(actual)
		if err != nil {
			return false, err
		}

		if opt := msg.IsEdns0(); opt != nil {
			for _, o := range opt.Option {
				if o.Option() == code {
					return true, nil
				}
			}
		}

		return false, nil
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} have EDNS option:\n{{format .Data 1}}",
		code,
	)
}

// HaveRecordOfType matches a record slice or message answer containing at least one record of type t
func HaveRecordOfType(t dns.Type) types.GomegaMatcher {
	return gcustom.MakeMatcher(func(actual any) (bool, error) {
		rrs, ok := actual.([]dns.RR)
		if !ok {
			var err error

			if rrs, err = ToAnswer(actual); err != nil {
				return false, err
			}
		}

		for _, rr := range rrs {
			if rr.Header().Rrtype == uint16(t) {
				return true, nil
			}
		}

		return false, nil
	}).WithTemplate(
		"Expected:\n{{.Actual}}\n{{.To}} contain a record of type:\n{{format .Data 1}}",
		t.String(),
	)
}

func toFirstRR(actual interface{}) (dns.RR, error) {
	switch i := actual.(type) {
	case *model.Response:
		return toFirstRR(i.Res)
	case *dns.Msg:
		return toFirstRR(i.Answer)

	case []dns.RR:
		if len(i) == 0 {
			return nil, fmt.Errorf("answer must not be empty")
		}

		if len(i) == 1 {
			return toFirstRR(i[0])
		}

		return nil, fmt.Errorf("supports only single RR in answer")
	case dns.RR:
		return i, nil
	case interface{ DNSMsg() *dns.Msg }:
		return toFirstRR(i.DNSMsg())
	default:
		return nil, fmt.Errorf("not supported type")
	}
}

func HaveTTL(matcher types.GomegaMatcher) types.GomegaMatcher {
	return gomega.WithTransform(func(actual interface{}) (uint32, error) {
		rr, err := toFirstRR(actual)
		if err != nil {
			return 0, err
		}

		return rr.Header().Ttl, nil
	}, matcher)
}

// BeDNSRecord returns new dns matcher
func BeDNSRecord(domain string, dnsType dns.Type, answer string) types.GomegaMatcher {
	return &dnsRecordMatcher{
		domain:  domain,
		dnsType: dnsType,
		answer:  answer,
	}
}

type dnsRecordMatcher struct {
	domain  string
	dnsType dns.Type
	answer  string
}

func (matcher *dnsRecordMatcher) matchSingle(rr dns.RR) (success bool, err error) {
	if !sameName(rr.Header().Name, matcher.domain) ||
		(dns.Type(rr.Header().Rrtype) != matcher.dnsType) {
		return false, nil
	}

	switch v := rr.(type) {
	case *dns.A:
		return v.A.String() == matcher.answer, nil
	case *dns.AAAA:
		return v.AAAA.String() == matcher.answer, nil
	case *dns.NS:
		return sameName(v.Ns, matcher.answer), nil
	case *dns.CNAME:
		return sameName(v.Target, matcher.answer), nil
	case *dns.TXT:
		return len(v.Txt) == 1 && v.Txt[0] == matcher.answer, nil
	case *dns.DS:
		return fmt.Sprint(v.KeyTag) == matcher.answer, nil
	}

	return false, nil
}

// Match checks the DNS record
func (matcher *dnsRecordMatcher) Match(actual interface{}) (success bool, err error) {
	rr, err := toFirstRR(actual)
	if err != nil {
		return false, err
	}

	return matcher.matchSingle(rr)
}

// FailureMessage generates a failure message
func (matcher *dnsRecordMatcher) FailureMessage(actual interface{}) (message string) {
	return fmt.Sprintf("Expected\n\t%s\n to contain\n\t domain '%s', type '%s', answer '%s'",
		actual, matcher.domain, dns.TypeToString[uint16(matcher.dnsType)], matcher.answer)
}

// NegatedFailureMessage creates negated message
func (matcher *dnsRecordMatcher) NegatedFailureMessage(actual interface{}) (message string) {
	return fmt.Sprintf("Expected\n\t%s\n not to contain\n\t domain '%s', type '%s', answer '%s'",
		actual, matcher.domain, dns.TypeToString[uint16(matcher.dnsType)], matcher.answer)
}

func sameName(a, b string) bool {
	return dns.CanonicalName(a) == dns.CanonicalName(b)
}
