package graph

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"errors"
	"fmt"

	"github.com/0xERR0R/dnstestbed/model"
)

// Step of the topology construction ENUM(
// prepare // checking the leaf name server
// allocate // creating the ancestor name servers
// delegate // adding the referrals between the zones
// sign // signing the chain leaf first
// start // starting the name servers root first
// )
type Step uint8

// ErrLeafServing is returned if the leaf name server was started before the graph was built
var ErrLeafServing = errors.New("leaf name server is already serving")

// TopologyError is returned if a graph could not be built. Nodes created or started by the
// builder are stopped before it is returned.
type TopologyError struct {
	Step Step
	Zone model.FQDN
	Err  error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("can't build topology (%s %s): %v", e.Step, e.Zone, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}
