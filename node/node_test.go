package node

import (
	"errors"
	"net/netip"

	"github.com/0xERR0R/dnstestbed/evt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeNode struct {
	addr    netip.Addr
	err     error
	stopped *[]netip.Addr
}

func (f *fakeNode) Role() Role { return RoleNameserver }
func (f *fakeNode) Addr() netip.Addr { return f.addr }
func (f *fakeNode) Stop() error {
	*f.stopped = append(*f.stopped, f.addr)

	return f.err
}

var _ = Describe("Node", func() {
	Describe("StopAll", func() {
		var stopped []netip.Addr

		BeforeEach(func() {
			stopped = nil
		})

		It("should stop in reverse order", func() {
			a := &fakeNode{addr: netip.MustParseAddr("127.53.0.1"), stopped: &stopped}
			b := &fakeNode{addr: netip.MustParseAddr("127.53.0.2"), stopped: &stopped}

			Expect(StopAll(a, nil, b)).Should(Succeed())
			Expect(stopped).Should(Equal([]netip.Addr{b.addr, a.addr}))
		})

		It("should stop all nodes and collect every error", func() {
			errA := errors.New("a failed")
			errB := errors.New("b failed")
			a := &fakeNode{addr: netip.MustParseAddr("127.53.0.1"), err: errA, stopped: &stopped}
			b := &fakeNode{addr: netip.MustParseAddr("127.53.0.2"), err: errB, stopped: &stopped}

			err := StopAll(a, b)
			Expect(err).Should(MatchError(errA))
			Expect(err).Should(MatchError(errB))
			Expect(stopped).Should(HaveLen(2))
		})
	})

	Describe("events", func() {
		It("should publish role and address", func() {
			var got []string

			fn := func(role, addr string) {
				got = append(got, role, addr)
			}

			Expect(evt.Bus().Subscribe(evt.NodeStarted, fn)).Should(Succeed())
			DeferCleanup(func() error { return evt.Bus().Unsubscribe(evt.NodeStarted, fn) })

			var stopped []netip.Addr
			PublishStarted(&fakeNode{addr: netip.MustParseAddr("127.53.0.7"), stopped: &stopped})

			Expect(got).Should(Equal([]string{"nameserver", "127.53.0.7"}))
		})
	})

	Describe("Role", func() {
		It("should parse names", func() {
			Expect(ParseRole("Resolver")).Should(Equal(RoleResolver))
			_, err := ParseRole("router")
			Expect(err).Should(MatchError(ErrInvalidRole))
		})
	})
})
