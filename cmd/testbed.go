package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/0xERR0R/dnstestbed/api"
	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/conformance"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/miekg/dns"
)

// testbed exposes a running test bed over the HTTP API
type testbed struct {
	*conformance.Testbed
}

// Query implements api.Querier, the client sends the query to the resolver with RD set
func (tb *testbed) Query(
	ctx context.Context, name model.FQDN, qType dns.Type, dnssec, checkingDisabled bool,
) (*client.Response, error) {
	settings := tb.Client.Settings()

	if dnssec {
		settings = settings.WithDNSSEC()
	}

	if checkingDisabled {
		settings = settings.WithCheckingDisabled()
	}

	return tb.Dig(ctx, settings, qType, name)
}

// Topology implements api.TopologyProvider
func (tb *testbed) Topology() api.Topology {
	t := api.Topology{
		Network: tb.Network.Name(),
		Subnet:  tb.Network.Prefix().String(),
		Port:    tb.Network.Port(),
		Signing: tb.Sign().String(),
	}

	if anchor, ok := tb.Graph.TrustAnchor(); ok {
		t.TrustAnchor = anchor.DSStrings()
	}

	for _, ns := range tb.Graph.NameServers {
		t.Nodes = append(t.Nodes, api.Node{
			Role:    ns.Role().String(),
			Zone:    ns.ZoneName().String(),
			Address: ns.Addr().String(),
		})
	}

	t.Nodes = append(t.Nodes,
		api.Node{
			Role:       tb.Resolver.Role().String(),
			Address:    tb.Resolver.Addr().String(),
			Validating: tb.Resolver.Validates(),
		},
		api.Node{
			Role:    tb.Client.Role().String(),
			Address: tb.Client.Addr().String(),
		},
	)

	return t
}

func (tb *testbed) printTopology(w io.Writer) {
	topology := tb.Topology()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s %s (%s)", topology.Network, topology.Subnet, topology.Signing))
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Role", "Zone", "Address", "Validating"})

	for _, n := range topology.Nodes {
		t.AppendRow(table.Row{n.Role, n.Zone, n.Address, n.Validating})
	}

	for _, ds := range topology.TrustAnchor {
		t.AppendFooter(table.Row{"trust anchor", ds})
	}

	t.Render()
}
