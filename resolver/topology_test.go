package resolver

import (
	"errors"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	. "github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/miekg/dns"
	. "github.com/onsi/gomega"
	. "github.com/onsi/ginkgo/v2"
	"github.com/stretchr/testify/mock"
)

// testTopology is root -> test. -> example.test. plus other.test., whose name server has no glue.
// The name servers are not started: the exchanger answers from their zones directly.
type testTopology struct {
	nw                      *network.Network
	root, tld, leaf, other *nameserver.NameServer
	servers                 map[netip.AddrPort]*nameserver.NameServer
}

func newTestTopology() *testTopology {
	nw, err := network.New(NetworkConfig(BlockResolver))
	Expect(err).Should(Succeed())
	DeferCleanup(nw.Close)

	cfg := config.NameServer{
		TTL:         config.Duration(time.Hour),
		NegativeTTL: config.Duration(5 * time.Minute),
	}

	create := func(origin model.FQDN) *nameserver.NameServer {
		ns, err := nameserver.NewForZone(nw, origin, cfg)
		Expect(err).Should(Succeed())
		DeferCleanup(ns.Stop)

		return ns
	}

	t := &testTopology{
		nw:    nw,
		root:  create(model.Root),
		tld:   create(model.TestTLD),
		leaf:  create(model.TestDomain),
		other: create("other.test."),
	}

	t.servers = map[netip.AddrPort]*nameserver.NameServer{}
	for _, ns := range []*nameserver.NameServer{t.root, t.tld, t.leaf, t.other} {
		t.servers[ns.AddrPort()] = ns
	}

	Expect(t.root.Zone().Delegate(model.TestTLD, t.tld.Addr(), 3600)).Should(Succeed())
	Expect(t.tld.Zone().Delegate(model.TestDomain, t.leaf.Addr(), 3600)).Should(Succeed())
	Expect(t.tld.Zone().AddString("other.test. 3600 IN NS ns.example.test.")).Should(Succeed())
	Expect(t.leaf.Zone().AddString(
		"www.example.test. 600 IN A 192.0.2.1",
		"alias.example.test. 600 IN CNAME www.example.test.",
		"away.example.test. 600 IN CNAME www.other.test.",
		"ns.example.test. 600 IN A "+t.other.Addr().String(),
	)).Should(Succeed())
	Expect(t.other.Zone().AddString("www.other.test. 600 IN A 192.0.2.20")).Should(Succeed())

	return t
}

// sign signs the zones leaf-up and returns the trust anchor of the root. other.test. stays unsigned.
func (t *testTopology) sign() *signer.TrustAnchor {
	sign := func(ns, parent *nameserver.NameServer) *signer.SignedZone {
		signed, err := signer.Sign(ns.Zone(), config.DefaultSigning())
		Expect(err).Should(Succeed())
		Expect(ns.SetZone(signed.Zone)).Should(Succeed())

		if parent != nil {
			for _, ds := range signed.DS {
				Expect(parent.Zone().Add(ds)).Should(Succeed())
			}
		}

		return signed
	}

	sign(t.leaf, t.tld)
	sign(t.tld, t.root)

	return sign(t.root, nil).TrustAnchor()
}

func (t *testTopology) rootHint() model.RootHint {
	return model.RootHint{Name: "ns1.", Addr: t.root.Addr()}
}

// exchanger answers every query to a name server of the topology, other addresses are unreachable
func (t *testTopology) exchanger() *mockExchanger {
	e := &mockExchanger{}
	e.AnswerFn = func(_ config.Transport, server netip.AddrPort, req *dns.Msg) *dns.Msg {
		if ns, ok := t.servers[server]; ok {
			return ns.Answer(req)
		}

		return nil
	}
	e.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))

	return e
}

// sentQuery is one query the exchanger received
type sentQuery struct {
	transport config.Transport
	server    netip.AddrPort
	msg       *dns.Msg
}

func (q sentQuery) question() dns.Question {
	return q.msg.Question[0]
}

func sentQueries(e *mockExchanger) []sentQuery {
	res := make([]sentQuery, 0, len(e.Calls))

	for _, call := range e.Calls {
		res = append(res, sentQuery{
			transport: call.Arguments.Get(0).(config.Transport),
			server:    call.Arguments.Get(1).(netip.AddrPort),
			msg:       call.Arguments.Get(2).(*dns.Msg),
		})
	}

	return res
}

func serversOf(queries []sentQuery) []netip.AddrPort {
	res := make([]netip.AddrPort, 0, len(queries))

	for _, q := range queries {
		res = append(res, q.server)
	}

	return res
}
