package client

import (
	"context"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/record"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/creasty/defaults"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		nw  *network.Network
		ns  *nameserver.NameServer
		cfg config.Client
		sut *Client
	)

	BeforeEach(func() {
		var err error

		ctx = context.Background()

		Expect(defaults.Set(&cfg)).Should(Succeed())
		cfg.Timeout = config.Duration(time.Second)

		nw, err = network.New(NetworkConfig(BlockClient))
		Expect(err).Should(Succeed())
		DeferCleanup(nw.Close)

		ns, err = nameserver.NewForZone(nw, model.TestDomain, config.NameServer{
			TTL:         config.Duration(time.Hour),
			NegativeTTL: config.Duration(time.Minute),
		})
		Expect(err).Should(Succeed())
		DeferCleanup(ns.Stop)

		Expect(ns.Zone().AddString(
			"www.example.test. 600 IN A 192.0.2.1",
			"www.example.test. 600 IN AAAA 2001:db8::1",
		)).Should(Succeed())
		Expect(ns.Start(ctx)).Should(Succeed())

		sut, err = New(nw, cfg)
		Expect(err).Should(Succeed())
		DeferCleanup(sut.Stop)
	})

	Describe("Node", func() {
		It("should be a client on its own address", func() {
			Expect(sut.Role()).Should(Equal(node.RoleClient))
			Expect(sut.Addr()).ShouldNot(Equal(ns.Addr()))
			Expect(nw.Prefix().Contains(sut.Addr())).Should(BeTrue())
			Expect(sut.String()).Should(ContainSubstring(sut.Addr().String()))

			var querier node.Querier = sut
			Expect(querier).ShouldNot(BeNil())
		})

		It("should release its address on stop", func() {
			attached := nw.Attached()

			Expect(sut.Stop()).Should(Succeed())
			Expect(sut.Stop()).Should(Succeed())
			Expect(nw.Attached()).Should(Equal(attached - 1))
		})
	})

	Describe("Dig", func() {
		It("should return the decoded answer", func() {
			resp, err := sut.Dig(ctx, sut.Settings(), ns.Addr(), A, "www.example.test.")
			Expect(err).Should(Succeed())

			Expect(resp.Status.IsNoError()).Should(BeTrue())
			Expect(resp.Flags.Authoritative).Should(BeTrue())
			Expect(resp.Flags.RecursionDesired).Should(BeFalse())
			Expect(resp).Should(BeDNSRecord("www.example.test.", A, "192.0.2.1"))

			addresses := record.OfType[record.A](resp.Answer)
			Expect(addresses).Should(HaveLen(1))
			Expect(addresses[0].Addr).Should(Equal(netip.MustParseAddr("192.0.2.1")))
		})

		It("should query over TCP", func() {
			resp, err := sut.Dig(ctx, sut.Settings().WithTransport(config.TransportTcp), ns.Addr(), AAAA,
				"www.example.test.")
			Expect(err).Should(Succeed())

			Expect(record.OfType[record.AAAA](resp.Answer)[0].Addr).
				Should(Equal(netip.MustParseAddr("2001:db8::1")))
		})

		It("should report negative answers as status", func() {
			resp, err := sut.Dig(ctx, sut.Settings(), ns.Addr(), A, "missing.example.test.")
			Expect(err).Should(Succeed())

			Expect(resp.Status.IsNXDomain()).Should(BeTrue())
			Expect(resp.Status.String()).Should(Equal("NXDOMAIN"))
			Expect(resp.Answer).Should(BeEmpty())
			Expect(record.OfType[record.SOA](resp.Authority)).Should(HaveLen(1))
		})

		It("should report refused queries as status", func() {
			resp, err := sut.Dig(ctx, sut.Settings(), ns.Addr(), A, "www.other.test.")
			Expect(err).Should(Succeed())

			Expect(resp.Status.IsRefused()).Should(BeTrue())
		})

		It("should fail with ErrNoResponse if nothing answers", func() {
			silent, err := nw.Allocate()
			Expect(err).Should(Succeed())
			DeferCleanup(silent.Release)

			settings := sut.Settings()
			settings.Timeout = 200 * time.Millisecond

			_, err = sut.Dig(ctx, settings, silent.Addr(), A, "www.example.test.")
			Expect(err).Should(MatchError(ErrNoResponse))
		})
	})

	Describe("Exchange", func() {
		It("should send the given message", func() {
			req := util.NewMsgWithQuestion("www.example.test.", A)

			resp, err := sut.Exchange(ctx, ns.AddrPort(), req)
			Expect(err).Should(Succeed())
			Expect(resp).Should(HaveReturnCode(dns.RcodeSuccess))
		})
	})
})

var _ = Describe("NewRequest", func() {
	It("should set the requested flags", func() {
		settings := Settings{UDPSize: 1232}.WithRecurse().WithDNSSEC().WithCheckingDisabled().WithAuthenticData()

		msg := NewRequest(Query{Type: DS, Name: model.TestDomain, Settings: settings})

		Expect(msg.Question).Should(HaveLen(1))
		Expect(msg.Question[0].Name).Should(Equal("example.test."))
		Expect(msg.Question[0].Qtype).Should(Equal(dns.TypeDS))
		Expect(msg).Should(SatisfyAll(HaveFlag("rd"), HaveFlag("cd"), HaveFlag("ad")))
		Expect(util.IsDNSSECOK(msg)).Should(BeTrue())
		Expect(msg.IsEdns0().UDPSize()).Should(BeEquivalentTo(1232))
	})

	It("should not add EDNS to plain queries", func() {
		msg := NewRequest(Query{Type: A, Name: model.TestDomain, Settings: Settings{UDPSize: 512}})

		Expect(msg).ShouldNot(HaveFlag("rd"))
		Expect(msg.IsEdns0()).Should(BeNil())
	})
})

var _ = Describe("Response", func() {
	It("should decode flags, records and extended errors", func() {
		msg := new(dns.Msg)
		msg.SetQuestion("example.test.", dns.TypeDS)
		msg.Response = true
		msg.Rcode = dns.RcodeServerFailure
		msg.RecursionAvailable = true
		msg.AuthenticatedData = true
		util.SetEdns0Option(msg, &dns.EDNS0_EDE{InfoCode: dns.ExtendedErrorCodeDNSBogus, ExtraText: "bogus"})

		resp := NewResponse(msg)

		Expect(resp.Status.IsServFail()).Should(BeTrue())
		Expect(resp.Flags.String()).Should(Equal("rd ra ad"))
		Expect(resp.ExtendedError).Should(Equal(&ExtendedError{Code: dns.ExtendedErrorCodeDNSBogus, Text: "bogus"}))
		Expect(resp.Additional).Should(BeEmpty())
		Expect(resp.DNSMsg()).Should(BeIdenticalTo(msg))
		Expect(resp.String()).Should(ContainSubstring("SERVFAIL"))
	})

	It("should expose the zone of DS records", func() {
		msg, err := util.NewMsgWithAnswer("example.test. 3600 IN DS 12345 13 2 " +
			"0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF")
		Expect(err).Should(Succeed())

		resp := NewResponse(msg)

		Expect(resp.Answer).Should(HaveLen(1))
		ds, ok := resp.Answer[0].(record.DS)
		Expect(ok).Should(BeTrue())
		Expect(ds.Zone).Should(Equal(model.TestDomain))
		Expect(ds.KeyTag).Should(BeEquivalentTo(12345))
	})

	It("should print unknown codes", func() {
		Expect(Status(4000).String()).Should(Equal("RCODE4000"))
	})
})
