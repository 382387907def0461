package dnssec

// This file contains the denial of existence dispatcher per RFC 4035 §5.4.

import (
	"context"

	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
)

// validateDenialOfExistence validates the NSEC records of a negative response
func (v *Validator) validateDenialOfExistence(
	ctx context.Context,
	response *dns.Msg,
	question dns.Question,
) ValidationResult {
	// the SOA and NSEC RRsets must be authentic before they can prove anything
	result := v.validateRRsets(ctx, response.Ns)
	if result != ValidationResultSecure {
		v.logger.Warnf("Authority section validation for denial of existence of %s: %s", question.Name, result)

		return result
	}

	nsecRecords := util.ExtractRecords[*dns.NSEC](response.Ns)
	if len(nsecRecords) == 0 {
		// a signed zone must prove the denial
		v.logger.Warnf("No NSEC records found for denial of existence: %s", question.Name)

		return ValidationResultBogus
	}

	if response.Rcode == dns.RcodeNameError {
		return v.validateNSECNXDOMAIN(nsecRecords, question.Name)
	}

	return v.validateNSECNODATA(nsecRecords, question.Name, question.Qtype)
}
