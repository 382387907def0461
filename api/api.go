// Package api exposes a running test bed over HTTP: the topology it serves and queries sent
// through its resolver.
package api

const (
	PathTopology = "/api/topology"
	PathQuery    = "/api/query"
)

// Node is one node of the topology
type Node struct {
	// Role of the node: nameserver, resolver or client
	Role string `json:"role"`
	// Zone served by a name server, empty for other roles
	Zone    string `json:"zone,omitempty"`
	Address string `json:"address"`
	// Validating is true for resolvers configured with a trust anchor
	Validating bool `json:"validating,omitempty"`
}

// Topology describes the running test bed
type Topology struct {
	Network string `json:"network"`
	Subnet  string `json:"subnet"`
	Port    uint16 `json:"port"`
	// Signing is "unsigned" or the algorithm the zones are signed with
	Signing string `json:"signing"`
	// TrustAnchor contains the DS records of the root zone if the zones are signed
	TrustAnchor []string `json:"trustAnchor,omitempty"`
	// Nodes of the delegation chain root first, followed by the resolver and the client
	Nodes []Node `json:"nodes"`
}

// QueryRequest is a query sent to the resolver of the test bed
type QueryRequest struct {
	// Query is the domain name to resolve
	Query string `json:"query"`
	// Type is the query type (A, AAAA, DS, ...)
	Type string `json:"type"`
	// DNSSEC sets the DO bit
	DNSSEC bool `json:"dnssec"`
	// CheckingDisabled sets the CD flag
	CheckingDisabled bool `json:"checkingDisabled"`
}

// QueryResult is the decoded answer of the resolver
type QueryResult struct {
	// ReturnCode of the response (NOERROR, SERVFAIL, ...)
	ReturnCode string `json:"returnCode"`
	// Flags set in the response header
	Flags  string   `json:"flags"`
	Answer []string `json:"answer"`
	// ExtendedError is the EDE code and text of a failed response
	ExtendedError string `json:"extendedError,omitempty"`
}
