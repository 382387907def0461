package resolver

import (
	"context"
	"net/netip"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type mockResolver struct {
	mock.Mock
	NextResolver

	ResolveFn  func(ctx context.Context, req *model.Request) (*model.Response, error)
	ResponseFn func(req *dns.Msg) *dns.Msg
}

// Type implements `Resolver`.
func (r *mockResolver) Type() string {
	return "mock"
}

// String implements `fmt.Stringer`.
func (r *mockResolver) String() string {
	return r.Type()
}

// IsEnabled implements `config.Configurable`.
func (r *mockResolver) IsEnabled() bool {
	return true
}

// LogConfig implements `config.Configurable`.
func (r *mockResolver) LogConfig(*logrus.Entry) {
}

func (r *mockResolver) Resolve(ctx context.Context, req *model.Request) (*model.Response, error) {
	args := r.Called(req)

	if r.ResolveFn != nil {
		return r.ResolveFn(ctx, req)
	}

	if r.ResponseFn != nil {
		return &model.Response{
			Res:    r.ResponseFn(req.Req),
			Reason: "",
			RType:  model.ResponseTypeRESOLVED,
		}, nil
	}

	resp, ok := args.Get(0).(*model.Response)

	if ok {
		return resp, args.Error(1)
	}

	return nil, args.Error(1)
}

// mockExchanger answers the queries of the iterative resolver without network
type mockExchanger struct {
	mock.Mock

	// AnswerFn answers a query sent to server; nil falls back to the configured return values
	AnswerFn func(transport config.Transport, server netip.AddrPort, req *dns.Msg) *dns.Msg
}

func (e *mockExchanger) Exchange(
	_ context.Context, transport config.Transport, server netip.AddrPort, msg *dns.Msg,
) (*dns.Msg, error) {
	args := e.Called(transport, server, msg)

	if e.AnswerFn != nil {
		if resp := e.AnswerFn(transport, server, msg); resp != nil {
			return resp, nil
		}
	}

	resp, _ := args.Get(0).(*dns.Msg)

	return resp, args.Error(1)
}
