package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, request *model.Request) (*model.Response, error) {
	args := m.Called(ctx, request)

	resp, _ := args.Get(0).(*model.Response)

	return resp, args.Error(1)
}

var _ = Describe("Server", func() {
	var (
		ctx    context.Context
		nw     *network.Network
		ep     *network.Endpoint
		peer   *network.Endpoint
		sut    *Server
		answer func(w dns.ResponseWriter, req *dns.Msg)
	)

	exchange := func(transport config.Transport, req *dns.Msg) (*dns.Msg, error) {
		conn, err := peer.Dial(ctx, transport, ep.AddrPort())
		Expect(err).Should(Succeed())

		defer conn.Close()

		c := &dns.Client{Net: transport.String(), Timeout: time.Second}

		resp, _, err := c.ExchangeWithConnContext(ctx, req, &dns.Conn{Conn: conn})

		return resp, err
	}

	BeforeEach(func() {
		var err error

		ctx = context.Background()

		nw, err = network.New(NetworkConfig(BlockServer))
		Expect(err).Should(Succeed())
		DeferCleanup(nw.Close)

		ep, err = nw.Allocate()
		Expect(err).Should(Succeed())

		peer, err = nw.Allocate()
		Expect(err).Should(Succeed())

		answer = func(w dns.ResponseWriter, req *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   ep.Addr().AsSlice(),
			})

			_ = w.WriteMsg(resp)
		}
	})

	JustBeforeEach(func() {
		sut = New(ep, dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) { answer(w, req) }), log.PrefixedLog("test"))
	})

	It("should serve UDP and TCP", func() {
		Expect(sut.Start(ctx)).Should(Succeed())
		DeferCleanup(sut.Stop)

		Expect(sut.IsRunning()).Should(BeTrue())
		Expect(sut.Endpoint()).Should(Equal(ep))

		for _, transport := range []config.Transport{config.TransportUdp, config.TransportTcp} {
			resp, err := exchange(transport, util.NewMsgWithQuestion("example.test.", A))
			Expect(err).Should(Succeed())
			Expect(resp).Should(BeDNSRecord("example.test.", A, ep.Addr().String()))
		}
	})

	It("should not start twice", func() {
		Expect(sut.Start(ctx)).Should(Succeed())
		DeferCleanup(sut.Stop)

		Expect(sut.Start(ctx)).Should(MatchError(ErrAlreadyStarted))
	})

	It("should stop once and not start again", func() {
		Expect(sut.Start(ctx)).Should(Succeed())

		Expect(sut.Stop()).Should(Succeed())
		Expect(sut.Stop()).Should(Succeed())
		Expect(sut.IsRunning()).Should(BeFalse())

		Expect(sut.Start(ctx)).Should(MatchError(ErrStopped))

		_, err := exchange(config.TransportUdp, util.NewMsgWithQuestion("example.test.", A))
		Expect(err).Should(HaveOccurred())
	})

	It("should fail on a released endpoint", func() {
		ep.Release()

		Expect(sut.Start(ctx)).ShouldNot(Succeed())
		Expect(sut.IsRunning()).Should(BeFalse())
	})

	Describe("ResolvingHandler", func() {
		var m *mockResolver

		BeforeEach(func() {
			m = &mockResolver{}

			handler := NewResolvingHandler(m, log.PrefixedLog("test"))

			answer = handler.ServeDNS
		})

		JustBeforeEach(func() {
			Expect(sut.Start(ctx)).Should(Succeed())
			DeferCleanup(sut.Stop)
		})

		It("should pass the request with client address and protocol", func() {
			m.On("Resolve", mock.Anything, mock.MatchedBy(func(req *model.Request) bool {
				return req.ClientIP == peer.Addr() && req.Protocol == model.RequestProtocolTCP
			})).Return(&model.Response{Res: new(dns.Msg)}, nil)

			req := util.NewMsgWithQuestion("example.test.", A)
			req.RecursionDesired = true

			resp, err := exchange(config.TransportTcp, req)
			Expect(err).Should(Succeed())
			Expect(resp.Id).Should(Equal(req.Id))
			Expect(resp).Should(HaveFlag("ra"))
			m.AssertExpectations(GinkgoT())
		})

		It("should answer SERVFAIL on error", func() {
			m.On("Resolve", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

			resp, err := exchange(config.TransportUdp, util.NewMsgWithQuestion("example.test.", A))
			Expect(err).Should(Succeed())
			Expect(resp).Should(HaveReturnCode(dns.RcodeServerFailure))
		})

		It("should truncate UDP responses to the advertised size", func() {
			m.On("Resolve", mock.Anything, mock.Anything).Return(func() *model.Response {
				msg := new(dns.Msg)

				for i := 0; i < 100; i++ {
					rr, err := dns.NewRR("example.test. 60 IN TXT \"" + strings.Repeat("x", 50) + "\"")
					Expect(err).Should(Succeed())

					msg.Answer = append(msg.Answer, rr)
				}

				return &model.Response{Res: msg}
			}(), nil)

			resp, err := exchange(config.TransportUdp, util.NewMsgWithQuestion("example.test.", TXT))
			Expect(err).Should(Succeed())
			Expect(resp).Should(HaveFlag("tc"))
		})
	})
})
