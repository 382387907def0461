package nameserver

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/server"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NameServer", func() {
	var (
		ctx  context.Context
		nw   *network.Network
		peer *network.Endpoint
		sut  *NameServer
		cfg  config.NameServer
	)

	query := func(name string, qType dns.Type, do bool) *dns.Msg {
		req := util.NewMsgWithQuestion(name, qType)
		if do {
			req.SetEdns0(4096, true)
		}

		return sut.Answer(req)
	}

	exchange := func(transport config.Transport, req *dns.Msg) (*dns.Msg, error) {
		conn, err := peer.Dial(ctx, transport, sut.AddrPort())
		Expect(err).Should(Succeed())

		defer conn.Close()

		c := &dns.Client{Net: transport.String(), Timeout: time.Second}

		resp, _, err := c.ExchangeWithConnContext(ctx, req, &dns.Conn{Conn: conn})

		return resp, err
	}

	BeforeEach(func() {
		var err error

		ctx = context.Background()
		cfg = config.NameServer{
			TTL:         config.Duration(time.Hour),
			NegativeTTL: config.Duration(5 * time.Minute),
		}

		nw, err = network.New(NetworkConfig(BlockNameServer))
		Expect(err).Should(Succeed())
		DeferCleanup(nw.Close)

		peer, err = nw.Allocate()
		Expect(err).Should(Succeed())

		sut, err = NewForZone(nw, model.TestTLD, cfg)
		Expect(err).Should(Succeed())
		DeferCleanup(sut.Stop)

		Expect(sut.Zone().AddString(
			"www.test. 600 IN A 192.0.2.1",
			"alias.test. 600 IN CNAME www.test.",
			"away.test. 600 IN CNAME www.example.org.",
			"a.b.test. 600 IN TXT deep",
		)).Should(Succeed())
		Expect(sut.Zone().Delegate(model.TestDomain, netip.MustParseAddr("192.0.2.53"), 3600)).Should(Succeed())
	})

	Describe("node", func() {
		It("should describe itself", func() {
			Expect(sut.ZoneName()).Should(Equal(model.TestTLD))
			Expect(sut.Role().String()).Should(Equal("nameserver"))
			Expect(sut.AddrPort().Port()).Should(Equal(uint16(TestPort)))
			Expect(sut.Zone().Lookup("ns1.test.", dns.TypeA)).Should(BeDNSRecord("ns1.test.", A, sut.Addr().String()))
		})

		It("should freeze the zone when started", func() {
			Expect(sut.Start(ctx)).Should(Succeed())
			Expect(sut.IsRunning()).Should(BeTrue())

			Expect(sut.Zone().Frozen()).Should(BeTrue())
			Expect(sut.Zone().AddString("new.test. 600 IN A 192.0.2.9")).Should(MatchError(zone.ErrFrozen))
			Expect(sut.SetZone(zone.New(model.TestTLD))).Should(MatchError(ErrServing))
		})

		It("should only accept a replacement zone with the same origin", func() {
			Expect(sut.SetZone(zone.New(model.TestDomain))).ShouldNot(Succeed())
			Expect(sut.SetZone(sut.Zone().Clone())).Should(Succeed())
		})

		It("should stop idempotently and not start again", func() {
			Expect(sut.Start(ctx)).Should(Succeed())

			Expect(sut.Stop()).Should(Succeed())
			Expect(sut.Stop()).Should(Succeed())
			Expect(sut.IsRunning()).Should(BeFalse())

			Expect(sut.Start(ctx)).Should(MatchError(server.ErrStopped))
		})
	})

	Describe("authoritative answers", func() {
		It("should answer in-zone data with AA", func() {
			resp := query("www.test.", A, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeSuccess),
				HaveFlag("aa"),
				Not(HaveFlag("ra")),
				BeDNSRecord("www.test.", A, "192.0.2.1"),
				HaveTTL(BeNumerically("==", 600)),
			))
		})

		It("should chase in-zone CNAMEs", func() {
			resp := query("alias.test.", A, false)

			Expect(resp.Answer).Should(HaveLen(2))
			Expect(resp.Answer[0]).Should(BeDNSRecord("alias.test.", CNAME, "www.test."))
			Expect(resp.Answer[1]).Should(BeDNSRecord("www.test.", A, "192.0.2.1"))
		})

		It("should stop at out-of-zone CNAME targets", func() {
			resp := query("away.test.", A, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeSuccess),
				BeDNSRecord("away.test.", CNAME, "www.example.org."),
			))
		})

		It("should answer CNAME queries with the alias only", func() {
			Expect(query("alias.test.", CNAME, false)).Should(BeDNSRecord("alias.test.", CNAME, "www.test."))
		})

		It("should add glue to apex NS answers", func() {
			resp := query("test.", NS, false)

			Expect(resp).Should(BeDNSRecord("test.", NS, "ns1.test."))
			Expect(resp.Extra).Should(HaveLen(1))
			Expect(resp.Extra[0]).Should(BeDNSRecord("ns1.test.", A, sut.Addr().String()))
		})

		It("should answer NODATA with the SOA and the negative TTL", func() {
			resp := query("www.test.", AAAA, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeSuccess),
				HaveFlag("aa"),
				HaveNoAnswer(),
			))
			Expect(resp.Ns).Should(HaveLen(1))
			Expect(resp.Ns).Should(SatisfyAll(
				HaveRecordOfType(SOA),
				HaveTTL(BeNumerically("==", 300)),
			))
		})

		It("should answer NODATA for empty non-terminals", func() {
			resp := query("b.test.", A, false)

			Expect(resp).Should(SatisfyAll(HaveReturnCode(dns.RcodeSuccess), HaveNoAnswer()))
		})

		It("should answer NXDOMAIN for unknown names", func() {
			resp := query("nope.test.", A, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeNameError),
				HaveFlag("aa"),
				HaveNoAnswer(),
			))
			Expect(resp.Ns).Should(HaveRecordOfType(SOA))
		})

		It("should answer ANY with every RRset of the name", func() {
			Expect(sut.Zone().AddString("www.test. 600 IN TXT hello")).Should(Succeed())

			resp := query("www.test.", dns.Type(dns.TypeANY), false)

			Expect(resp.Answer).Should(SatisfyAll(HaveLen(2), HaveRecordOfType(A), HaveRecordOfType(TXT)))
		})
	})

	Describe("referrals", func() {
		It("should refer queries below a delegation to the child", func() {
			resp := query("www.example.test.", A, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeSuccess),
				Not(HaveFlag("aa")),
				HaveNoAnswer(),
			))
			Expect(resp.Ns).Should(BeDNSRecord("example.test.", NS, "ns1.example.test."))
			Expect(resp.Extra).Should(BeDNSRecord("ns1.example.test.", A, "192.0.2.53"))
		})

		It("should refer queries for glue names", func() {
			resp := query("ns1.example.test.", A, false)

			Expect(resp).Should(SatisfyAll(Not(HaveFlag("aa")), HaveNoAnswer()))
			Expect(resp.Ns).Should(HaveRecordOfType(NS))
		})

		It("should answer DS queries of a cut itself", func() {
			resp := query("example.test.", DS, false)

			Expect(resp).Should(SatisfyAll(
				HaveReturnCode(dns.RcodeSuccess),
				HaveFlag("aa"),
				HaveNoAnswer(),
			))
			Expect(resp.Ns).Should(HaveRecordOfType(SOA))
		})
	})

	Describe("malformed and foreign queries", func() {
		It("should refuse names outside the zone", func() {
			Expect(query("example.org.", A, false)).Should(HaveReturnCode(dns.RcodeRefused))
		})

		It("should refuse other classes", func() {
			req := util.NewMsgWithQuestion("www.test.", A)
			req.Question[0].Qclass = dns.ClassCHAOS

			Expect(sut.Answer(req)).Should(HaveReturnCode(dns.RcodeRefused))
		})

		It("should not implement other opcodes", func() {
			req := util.NewMsgWithQuestion("test.", SOA)
			req.Opcode = dns.OpcodeNotify

			Expect(sut.Answer(req)).Should(HaveReturnCode(dns.RcodeNotImplemented))
		})

		It("should reject messages without a question", func() {
			req := new(dns.Msg)

			Expect(sut.Answer(req)).Should(HaveReturnCode(dns.RcodeFormatError))
		})
	})

	Describe("EDNS", func() {
		It("should echo EDNS with the DO bit", func() {
			resp := query("www.test.", A, true)

			opt := resp.IsEdns0()
			Expect(opt).ShouldNot(BeNil())
			Expect(opt.Do()).Should(BeTrue())
			Expect(opt.UDPSize()).Should(BeNumerically("==", ednsUDPSize))
		})

		It("should not add EDNS to plain queries", func() {
			Expect(query("www.test.", A, false).IsEdns0()).Should(BeNil())
		})
	})

	Describe("signed zone", func() {
		var child *signer.SignedZone

		BeforeEach(func() {
			childZone, err := zone.NewApex(model.TestDomain, netip.MustParseAddr("192.0.2.53"), 3600, 300)
			Expect(err).Should(Succeed())

			child, err = signer.Sign(childZone, config.DefaultSigning())
			Expect(err).Should(Succeed())

			for _, ds := range child.DS {
				Expect(sut.Zone().Add(ds)).Should(Succeed())
			}

			Expect(sut.Zone().Delegate("insecure.test.", netip.MustParseAddr("192.0.2.54"), 3600)).Should(Succeed())

			signed, err := signer.Sign(sut.Zone(), config.DefaultSigning())
			Expect(err).Should(Succeed())
			Expect(sut.SetZone(signed.Zone)).Should(Succeed())
		})

		It("should add signatures only for DO queries", func() {
			Expect(query("www.test.", A, true).Answer).Should(SatisfyAll(
				HaveLen(2), HaveRecordOfType(A), HaveRecordOfType(RRSIG),
			))
			Expect(query("www.test.", A, false).Answer).Should(HaveLen(1))
		})

		It("should serve the DNSKEY RRset", func() {
			resp := query("test.", DNSKEY, true)

			Expect(util.ExtractRecords[*dns.DNSKEY](resp.Answer)).Should(HaveLen(2))
			Expect(resp.Answer).Should(HaveRecordOfType(RRSIG))
		})

		It("should prove NODATA with the NSEC of the name", func() {
			resp := query("www.test.", AAAA, true)

			nsec := util.ExtractRecords[*dns.NSEC](resp.Ns)
			Expect(nsec).Should(HaveLen(1))
			Expect(nsec[0].Hdr.Name).Should(Equal("www.test."))
			Expect(nsec[0].TypeBitMap).ShouldNot(ContainElement(dns.TypeAAAA))
			Expect(util.ExtractRecords[*dns.RRSIG](resp.Ns)).Should(HaveLen(2))
		})

		It("should prove NXDOMAIN with covering NSEC records", func() {
			resp := query("nope.test.", A, true)

			Expect(resp).Should(HaveReturnCode(dns.RcodeNameError))

			nsec := util.ExtractRecords[*dns.NSEC](resp.Ns)
			Expect(nsec).ShouldNot(BeEmpty())

			for _, rr := range nsec {
				Expect(model.CanonicalCompare(rr.Hdr.Name, "nope.test.")).Should(BeNumerically("<", 0))
			}

			Expect(resp.Ns).Should(SatisfyAll(HaveRecordOfType(SOA), HaveRecordOfType(RRSIG)))
		})

		It("should prove an empty non-terminal with the covering NSEC", func() {
			resp := query("b.test.", A, true)

			Expect(resp).Should(HaveReturnCode(dns.RcodeSuccess))
			Expect(util.ExtractRecords[*dns.NSEC](resp.Ns)).Should(HaveLen(1))
		})

		It("should add the signed DS to referrals of secure delegations", func() {
			resp := query("www.example.test.", A, true)

			Expect(resp.Ns).Should(SatisfyAll(HaveRecordOfType(NS), HaveRecordOfType(DS), HaveRecordOfType(RRSIG)))
			Expect(resp.Ns).ShouldNot(HaveRecordOfType(NSEC))

			sigs := util.ExtractRecords[*dns.RRSIG](resp.Ns)
			Expect(sigs).Should(HaveLen(1))
			Expect(sigs[0].TypeCovered).Should(Equal(dns.TypeDS))
		})

		It("should prove the absence of DS in referrals of insecure delegations", func() {
			resp := query("www.insecure.test.", A, true)

			Expect(resp.Ns).Should(SatisfyAll(HaveRecordOfType(NS), HaveRecordOfType(NSEC)))
			Expect(resp.Ns).ShouldNot(HaveRecordOfType(DS))
		})

		It("should answer DS queries from the parent side", func() {
			resp := query("example.test.", DS, true)

			Expect(resp).Should(HaveFlag("aa"))
			Expect(util.ExtractRecords[*dns.DS](resp.Answer)).Should(HaveLen(len(child.DS)))
			Expect(resp.Answer).Should(HaveRecordOfType(RRSIG))
		})
	})

	Describe("serving", func() {
		BeforeEach(func() {
			var txt []string
			for i := 0; i < 40; i++ {
				txt = append(txt, fmt.Sprintf("big.test. 600 IN TXT %s", strings.Repeat("x", 60)+fmt.Sprint(i)))
			}

			Expect(sut.Zone().AddString(txt...)).Should(Succeed())
			Expect(sut.Start(ctx)).Should(Succeed())
		})

		It("should answer over UDP and TCP", func() {
			for _, transport := range []config.Transport{config.TransportUdp, config.TransportTcp} {
				resp, err := exchange(transport, util.NewMsgWithQuestion("www.test.", A))
				Expect(err).Should(Succeed())
				Expect(resp).Should(BeDNSRecord("www.test.", A, "192.0.2.1"))
			}
		})

		It("should truncate UDP responses to the advertised size", func() {
			resp, err := exchange(config.TransportUdp, util.NewMsgWithQuestion("big.test.", TXT))
			Expect(err).Should(Succeed())
			Expect(resp).Should(HaveFlag("tc"))

			resp, err = exchange(config.TransportTcp, util.NewMsgWithQuestion("big.test.", TXT))
			Expect(err).Should(Succeed())
			Expect(resp).ShouldNot(HaveFlag("tc"))
			Expect(resp.Answer).Should(HaveLen(40))
		})
	})
})
