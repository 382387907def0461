package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xERR0R/dnstestbed/log"

	"github.com/miekg/dns"
)

// AnswerToString renders records in a compact single line form for logging
func AnswerToString(answer []dns.RR) string {
	answers := make([]string, len(answer))

	for i, record := range answer {
		switch v := record.(type) {
		case *dns.A:
			answers[i] = fmt.Sprintf("A (%s)", v.A)
		case *dns.AAAA:
			answers[i] = fmt.Sprintf("AAAA (%s)", v.AAAA)
		case *dns.CNAME:
			answers[i] = fmt.Sprintf("CNAME (%s)", v.Target)
		case *dns.NS:
			answers[i] = fmt.Sprintf("NS (%s)", v.Ns)
		case *dns.DS:
			answers[i] = fmt.Sprintf("DS (%s %d)", v.Hdr.Name, v.KeyTag)
		case *dns.DNSKEY:
			answers[i] = fmt.Sprintf("DNSKEY (%d %d)", v.Flags, v.KeyTag())
		case *dns.RRSIG:
			answers[i] = fmt.Sprintf("RRSIG (%s %s)", dns.TypeToString[v.TypeCovered], v.SignerName)
		default:
			answers[i] = fmt.Sprint(record)
		}
	}

	return strings.Join(answers, ", ")
}

// QuestionToString renders questions as "TYPE (name)"
func QuestionToString(questions []dns.Question) string {
	result := make([]string, len(questions))
	for i, question := range questions {
		result[i] = fmt.Sprintf("%s (%s)", dns.Type(question.Qtype), question.Name)
	}

	return strings.Join(result, ", ")
}

// NewMsgWithQuestion creates a query message with one question
func NewMsgWithQuestion(question string, qType dns.Type) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(question), uint16(qType))

	return msg
}

// NewMsgWithAnswer creates a message with a single answer parsed from zone file syntax
func NewMsgWithAnswer(answer string) (*dns.Msg, error) {
	rr, err := dns.NewRR(answer)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.Answer = []dns.RR{rr}

	return msg, nil
}

// IsDNSSECType reports whether records of this type are added to responses only on DNSSEC OK queries
func IsDNSSECType(rrType uint16) bool {
	switch rrType {
	case dns.TypeRRSIG, dns.TypeNSEC, dns.TypeNSEC3, dns.TypeNSEC3PARAM:
		return true
	default:
		return false
	}
}

// LogOnError logs the message only if error is not nil
func LogOnError(ctx context.Context, message string, err error) {
	if err != nil {
		log.FromCtx(ctx).Error(message, err)
	}
}

// LogOnErrorWithEntry logs the message only if error is not nil
func LogOnErrorWithEntry(logEntry interface{ Error(args ...interface{}) }, message string, err error) {
	if err != nil {
		logEntry.Error(message, err)
	}
}

// FatalOnError logs the message only if error is not nil and exits the program execution
func FatalOnError(message string, err error) {
	if err != nil {
		log.Log().Fatal(message, err)
	}
}
