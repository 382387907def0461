package container

import (
	"context"
	"net/netip"
	"os"
	"time"

	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/graph"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/creasty/defaults"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Unbound", func() {
	var cfg config.Container

	BeforeEach(func() {
		Expect(defaults.Set(&cfg)).Should(Succeed())
	})

	Describe("configuration", func() {
		var (
			nw *network.Network
			u  *Unbound
		)

		BeforeEach(func() {
			var err error

			nw, err = network.New(NetworkConfig(BlockContainer))
			Expect(err).Should(Succeed())
			DeferCleanup(nw.Close)

			ep, err := nw.AllocateExternal()
			Expect(err).Should(Succeed())
			DeferCleanup(ep.Release)

			u = &Unbound{ep: ep, cfg: cfg}
		})

		It("should bind to the allocated address and use the root hints", func() {
			conf, err := u.renderConfig()
			Expect(err).Should(Succeed())

			Expect(conf).Should(ContainSubstring("interface: " + u.Addr().String() + "\n"))
			Expect(conf).Should(ContainSubstring("outgoing-interface: " + u.Addr().String() + "\n"))
			Expect(conf).Should(ContainSubstring("port: 53\n"))
			Expect(conf).Should(ContainSubstring(`root-hints: "` + unboundRootHints + `"`))
			Expect(conf).Should(ContainSubstring(`module-config: "iterator"`))
			Expect(conf).ShouldNot(ContainSubstring("trust-anchor"))
			Expect(u.Validates()).Should(BeFalse())
		})

		It("should validate with the trust anchor", func() {
			root, err := zone.NewApex(model.Root, netip.MustParseAddr("127.53.100.1"), 3600, 300)
			Expect(err).Should(Succeed())

			signed, err := signer.Sign(root, config.DefaultSigning())
			Expect(err).Should(Succeed())

			WithTrustAnchor(signed.TrustAnchor())(u)

			conf, err := u.renderConfig()
			Expect(err).Should(Succeed())

			Expect(conf).Should(ContainSubstring(`module-config: "validator iterator"`))
			Expect(conf).Should(MatchRegexp(`trust-anchor: "\. 3600 IN DS \d+ 13 2 [0-9A-F]+"`))
			Expect(u.Validates()).Should(BeTrue())

			anchor, ok := u.TrustAnchor()
			Expect(ok).Should(BeTrue())
			Expect(anchor.Zone).Should(Equal(model.Root))
		})

		It("should write the root hints", func() {
			hints := rootHints(model.RootHint{Name: "ns1.", Addr: netip.MustParseAddr("127.53.0.1")})

			Expect(hints).Should(Equal(". 3600000 IN NS ns1.\nns1. 3600000 IN A 127.53.0.1\n"))
		})

		It("should reject networks not on port 53", func() {
			_, err := NewUnbound(context.Background(), nw, model.RootHint{}, cfg)
			Expect(err).Should(MatchError(ErrPortUnsupported))
		})
	})

	Describe("container", Label("container"), func() {
		BeforeEach(func() {
			if os.Getenv("DNSTESTBED_CONTAINER_TESTS") == "" {
				Skip("set DNSTESTBED_CONTAINER_TESTS to run unbound in docker")
			}
		})

		It("should resolve and validate through a signed graph", func(ctx context.Context) {
			nw, err := network.New(config.Network{Subnet: "127.53.200.0/24", Port: 53})
			Expect(err).Should(Succeed())
			DeferCleanup(nw.Close)

			leaf, err := nameserver.NewForZone(nw, model.TestDomain, config.NameServer{
				TTL:         config.Duration(time.Hour),
				NegativeTTL: config.Duration(time.Minute),
			})
			Expect(err).Should(Succeed())
			Expect(leaf.Zone().AddString("www.example.test. 600 IN A 192.0.2.1")).Should(Succeed())

			g, err := graph.Build(ctx, nw, leaf, graph.Signed(config.DefaultSigning()))
			Expect(err).Should(Succeed())
			DeferCleanup(g.Close)

			anchor, _ := g.TrustAnchor()

			u, err := NewUnbound(ctx, nw, g.Root, cfg, WithTrustAnchor(anchor))
			Expect(err).Should(Succeed())
			DeferCleanup(u.Stop)

			var clientCfg config.Client
			Expect(defaults.Set(&clientCfg)).Should(Succeed())

			c, err := client.New(nw, clientCfg)
			Expect(err).Should(Succeed())
			DeferCleanup(c.Stop)

			resp, err := c.Dig(ctx, c.Settings().WithRecurse().WithDNSSEC(), u.Addr(), A, "www.example.test.")
			Expect(err).Should(Succeed())
			Expect(resp.Status.IsNoError()).Should(BeTrue())
			Expect(resp.Flags.AuthenticData).Should(BeTrue())
			Expect(resp).Should(HaveRecordOfType(A))

			Expect(u.Stop()).Should(Succeed())
			Expect(u.Stop()).Should(Succeed())
		}, SpecTimeout(3*time.Minute))
	})
})
