package node

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"context"
	"net/netip"

	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
)

// Role of a node in a topology ENUM(
// nameserver // authoritative server of one zone
// resolver // recursive resolver, optionally validating
// client // issues queries
// )
type Role uint8

// Node is a participant of a topology bound to one network address
type Node interface {
	Role() Role
	Addr() netip.Addr
	// Stop releases the node's sockets and address. Subsequent calls have no effect.
	Stop() error
}

// ZoneServer is a node serving a zone
type ZoneServer interface {
	Node
	ZoneName() model.FQDN
}

// Validating is a node validating responses with DNSSEC
type Validating interface {
	Node
	// Validates returns true if the node was configured with a trust anchor
	Validates() bool
}

// Querier is a node sending queries
type Querier interface {
	Node
	Exchange(ctx context.Context, server netip.AddrPort, req *dns.Msg) (*dns.Msg, error)
}

// StopAll stops every node in reverse order and aggregates the errors
func StopAll(nodes ...Node) error {
	var result *multierror.Error

	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i] == nil {
			continue
		}

		if err := nodes[i].Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// PublishStarted fires the node started event
func PublishStarted(n Node) {
	evt.Bus().Publish(evt.NodeStarted, n.Role().String(), n.Addr().String())
}

// PublishStopped fires the node stopped event
func PublishStopped(n Node) {
	evt.Bus().Publish(evt.NodeStopped, n.Role().String(), n.Addr().String())
}
