// Package e2e runs the conformance scenarios against every resolver implementation.
package e2e

import (
	"context"
	"fmt"
	"os"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/conformance"
	"github.com/0xERR0R/dnstestbed/container"
	"github.com/0xERR0R/dnstestbed/helpertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// containerTestsEnv enables the resolvers running in docker
const containerTestsEnv = "DNSTESTBED_CONTAINER_TESTS"

// resolverUnderTest is one resolver implementation the scenarios run against
type resolverUnderTest struct {
	name string
	kind conformance.ResolverKind
}

func (r resolverUnderTest) String() string {
	return r.name
}

//nolint:gochecknoglobals
var (
	builtin = resolverUnderTest{name: "builtin", kind: conformance.ResolverBuiltin}
	unbound = resolverUnderTest{name: "unbound", kind: conformance.ResolverUnbound}
)

// networkFor returns the network config for the resolver, unbound only serves on port 53
func networkFor(r resolverUnderTest) config.Network {
	nw := helpertest.NetworkConfig(helpertest.BlockE2E)

	if r.kind == conformance.ResolverUnbound {
		nw.Subnet = fmt.Sprintf("127.53.201.%d/28", 16*(GinkgoParallelProcess()-1))
		nw.Port = 53
	}

	return nw
}

// startTestbed starts a test bed with r as resolver. It is closed when the test is finished,
// the container logs are attached to the report of a failed test.
func startTestbed(ctx context.Context, r resolverUnderTest, opts conformance.Options) *conformance.Testbed {
	if r.kind == conformance.ResolverUnbound && os.Getenv(containerTestsEnv) == "" {
		Skip(fmt.Sprintf("set %s to run %s in docker", containerTestsEnv, r))
	}

	cfg, err := config.NewDefaultConfig()
	Expect(err).Should(Succeed())

	cfg.Network = networkFor(r)
	opts.Resolver = r.kind

	tb, err := conformance.New(ctx, cfg, opts)
	Expect(err).Should(Succeed())

	DeferCleanup(func(ctx context.Context) error {
		if CurrentSpecReport().Failed() {
			attachContainerLogs(ctx, tb)
		}

		return tb.Close()
	})

	return tb
}

// attachContainerLogs adds the logs of a resolver running in a container to the test report
func attachContainerLogs(ctx context.Context, tb *conformance.Testbed) {
	u, ok := tb.Resolver.(*container.Unbound)
	if !ok {
		return
	}

	lines, err := u.Logs(ctx)
	if err != nil {
		AddReportEntry("container logs", err.Error())

		return
	}

	AddReportEntry("container logs", lines)
}
