package resolver

import (
	"context"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/server"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/creasty/defaults"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var (
		sut       *Server
		sutConfig config.Resolver
		opts      []Option

		topology *testTopology
		client   *EndpointExchanger

		ctx      context.Context
		cancelFn context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancelFn = context.WithCancel(context.Background())
		DeferCleanup(cancelFn)

		Expect(defaults.Set(&sutConfig)).Should(Succeed())
		opts = nil

		topology = newTestTopology()

		ep, err := topology.nw.Allocate()
		Expect(err).Should(Succeed())
		DeferCleanup(ep.Release)

		client = NewEndpointExchanger(ep, 2*time.Second)
	})

	JustBeforeEach(func() {
		for _, ns := range []*nameserver.NameServer{topology.root, topology.tld, topology.leaf, topology.other} {
			Expect(ns.Start(ctx)).Should(Succeed())
		}

		var err error

		sut, err = NewServer(topology.nw, topology.rootHint(), sutConfig, opts...)
		Expect(err).Should(Succeed())
		DeferCleanup(sut.Stop)

		Expect(sut.Start(ctx)).Should(Succeed())
	})

	query := func(name string, qtype dns.Type, do bool) *dns.Msg {
		req := util.NewMsgWithQuestion(name, qtype)
		if do {
			req.SetEdns0(4096, true)
		}

		resp, err := client.Exchange(ctx, config.TransportUdp, sut.AddrPort(), req)
		Expect(err).Should(Succeed())
		Expect(resp.Id).Should(Equal(req.Id))

		return resp
	}

	Describe("Node", func() {
		It("should be a resolver on its own address", func() {
			Expect(sut.Role()).Should(Equal(node.RoleResolver))
			Expect(topology.nw.Prefix().Contains(sut.Addr())).Should(BeTrue())
			Expect(sut.AddrPort().Port()).Should(BeEquivalentTo(TestPort))
			Expect(sut.Endpoint().Addr()).Should(Equal(sut.Addr()))
			Expect(sut.String()).Should(ContainSubstring(sut.Addr().String()))
		})

		It("should not validate without trust anchor", func() {
			Expect(sut.Validates()).Should(BeFalse())

			_, ok := sut.TrustAnchor()
			Expect(ok).Should(BeFalse())
		})
	})

	Describe("Resolving", func() {
		It("should answer recursive queries", func() {
			resp := query("www.example.test.", A, false)

			Expect(resp).Should(SatisfyAll(
				BeDNSRecord("www.example.test.", A, "192.0.2.1"),
				HaveFlag("ra"),
				Not(HaveFlag("aa")),
				Not(HaveFlag("ad")),
			))
		})

		It("should refuse queries without RD", func() {
			req := util.NewMsgWithQuestion("www.example.test.", A)
			req.RecursionDesired = false

			resp, err := client.Exchange(ctx, config.TransportUdp, sut.AddrPort(), req)
			Expect(err).Should(Succeed())
			Expect(resp).Should(HaveReturnCode(dns.RcodeRefused))
		})

		It("should answer over TCP", func() {
			req := util.NewMsgWithQuestion("www.example.test.", A)

			resp, err := client.Exchange(ctx, config.TransportTcp, sut.AddrPort(), req)
			Expect(err).Should(Succeed())
			Expect(resp).Should(BeDNSRecord("www.example.test.", A, "192.0.2.1"))
		})

		It("should answer NXDOMAIN for missing names", func() {
			Expect(query("missing.example.test.", A, false)).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeNameError),
				HaveNoAnswer(),
			))
		})
	})

	When("a trust anchor is configured", func() {
		var anchor *signer.TrustAnchor

		BeforeEach(func() {
			anchor = topology.sign()
			opts = append(opts, WithTrustAnchor(anchor))
		})

		It("should validate", func() {
			Expect(sut.Validates()).Should(BeTrue())

			ta, ok := sut.TrustAnchor()
			Expect(ok).Should(BeTrue())
			Expect(ta).Should(BeIdenticalTo(anchor))
		})

		It("should mark validated answers as authentic", func() {
			Expect(query("www.example.test.", A, true)).Should(SatisfyAll(
				HaveFlag("ad"),
				HaveRecordOfType(RRSIG),
			))
		})

		It("should return the DS record of the parent side", func() {
			Expect(query("example.test.", DS, true)).Should(SatisfyAll(
				HaveFlag("ad"),
				HaveRecordOfType(DS),
			))
		})

		It("should hide signatures from clients without DO", func() {
			Expect(query("www.example.test.", A, false)).Should(SatisfyAll(
				BeDNSRecord("www.example.test.", A, "192.0.2.1"),
				Not(HaveFlag("ad")),
			))
		})

		When("validation is switched off", func() {
			BeforeEach(func() {
				sutConfig.DNSSEC.Validate = false
			})

			It("should not validate", func() {
				Expect(sut.Validates()).Should(BeFalse())
				Expect(query("www.example.test.", A, true)).Should(Not(HaveFlag("ad")))
			})
		})
	})

	Describe("LogConfig", func() {
		It("should log every resolver of the chain", func() {
			logger, hook := log.NewMockEntry()

			sut.LogConfig(logger)

			Expect(hook.Messages).Should(ContainElement(ContainSubstring("iterative")))
			Expect(hook.Messages).Should(ContainElement(ContainSubstring("recursion")))
		})
	})

	Describe("Stop", func() {
		It("should be idempotent", func() {
			Expect(sut.Stop()).Should(Succeed())
			Expect(sut.Stop()).Should(Succeed())
		})

		It("should stop answering", func() {
			Expect(sut.Stop()).Should(Succeed())

			req := util.NewMsgWithQuestion("www.example.test.", A)

			_, err := client.Exchange(ctx, config.TransportTcp, sut.AddrPort(), req)
			Expect(err).Should(HaveOccurred())
		})

		It("can't be started again", func() {
			Expect(sut.Stop()).Should(Succeed())

			Expect(sut.Start(ctx)).Should(MatchError(ContainSubstring(server.ErrStopped.Error())))
		})
	})

	When("the network has no free address", func() {
		It("should fail", func() {
			nw, err := network.New(config.Network{Subnet: "127.53.250.0/30", Port: TestPort})
			Expect(err).Should(Succeed())
			DeferCleanup(nw.Close)

			for {
				if _, err := nw.Allocate(); err != nil {
					break
				}
			}

			_, err = NewServer(nw, topology.rootHint(), sutConfig)
			Expect(err).Should(HaveOccurred())
		})
	})
})
