package resolver

import (
	"context"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// RecursionResolver is the client facing end of the chain. It refuses queries without RD and
// hides DNSSEC records and the AD flag from clients which did not ask for them.
type RecursionResolver struct {
	NextResolver
	typed
}

// clientFlags are the DNSSEC related flags of the query as sent by the client
type clientFlags struct {
	edns bool
	do   bool
	ad   bool
}

func NewRecursionResolver() *RecursionResolver {
	return &RecursionResolver{
		typed: withType("recursion"),
	}
}

// IsEnabled implements `config.Configurable`.
func (r *RecursionResolver) IsEnabled() bool {
	return true
}

// LogConfig implements `config.Configurable`.
func (r *RecursionResolver) LogConfig(logger *logrus.Entry) {
	logger.Info("queries without RD are refused")
}

// Resolve forwards recursive queries and shapes the response for the client
func (r *RecursionResolver) Resolve(ctx context.Context, request *model.Request) (*model.Response, error) {
	ctx, logger := r.log(ctx)

	flags := clientFlags{
		edns: request.Req.IsEdns0() != nil,
		do:   util.IsDNSSECOK(request.Req),
		ad:   request.Req.AuthenticatedData,
	}

	if !request.Req.RecursionDesired {
		logger.Debug("refusing query without RD")

		response := model.NewResponseWithRcode(request, dns.RcodeRefused, model.ResponseTypeREFUSED,
			"recursion not desired")
		setClientEdns(response.Res, flags, &dns.EDNS0_EDE{
			InfoCode:  model.ResponseTypeREFUSED.ToExtendedErrorCode(),
			ExtraText: "recursion not desired",
		})

		return response, nil
	}

	response, err := r.next.Resolve(ctx, request)
	if err != nil {
		return nil, err
	}

	res := response.Res
	res.RecursionAvailable = true

	if !flags.do {
		qtype := request.Question().Qtype
		keep := func(rr dns.RR) bool {
			t := rr.Header().Rrtype

			return t == qtype || !util.IsDNSSECType(t)
		}

		res.Answer = util.FilterRecords(res.Answer, keep)
		res.Ns = util.FilterRecords(res.Ns, keep)
		res.Extra = util.FilterRecords(res.Extra, keep)
	}

	if !flags.do && !flags.ad {
		res.AuthenticatedData = false
	}

	setClientEdns(res, flags, util.GetEdns0Option[*dns.EDNS0_EDE](res))

	return response, nil
}

// setClientEdns replaces the OPT record of res with one answering the client's OPT record
func setClientEdns(res *dns.Msg, flags clientFlags, ede *dns.EDNS0_EDE) {
	util.RemoveEdns0Record(res)

	if !flags.edns {
		return
	}

	opt := util.GetEdns0Record(res)
	opt.SetUDPSize(ednsUDPSize)
	opt.SetDo(flags.do)

	if ede != nil {
		util.SetEdns0Option(res, ede)
	}
}
