package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"

	"github.com/go-chi/chi/v5"
)

const (
	contentTypeHeader = "content-type"
	jsonContentType   = "application/json"
)

// TopologyProvider describes the running test bed
type TopologyProvider interface {
	Topology() Topology
}

// Querier sends queries to the resolver of the test bed
type Querier interface {
	Query(ctx context.Context, name model.FQDN, qType dns.Type, dnssec, checkingDisabled bool) (*client.Response, error)
}

// TopologyEndpoint endpoint for the topology description
type TopologyEndpoint struct {
	provider TopologyProvider
}

// QueryEndpoint endpoint for queries through the resolver
type QueryEndpoint struct {
	querier Querier
}

// RegisterEndpoint registers an implementation as HTTP endpoint
func RegisterEndpoint(router chi.Router, t interface{}) {
	if a, ok := t.(TopologyProvider); ok {
		registerTopologyEndpoint(router, a)
	}

	if a, ok := t.(Querier); ok {
		registerQueryEndpoint(router, a)
	}
}

func registerTopologyEndpoint(router chi.Router, p TopologyProvider) {
	e := &TopologyEndpoint{p}

	router.Get(PathTopology, e.apiTopology)
}

func registerQueryEndpoint(router chi.Router, q Querier) {
	e := &QueryEndpoint{q}

	router.Post(PathQuery, e.apiQuery)
}

// apiTopology is the http endpoint describing the nodes of the test bed
func (e *TopologyEndpoint) apiTopology(rw http.ResponseWriter, req *http.Request) {
	writeJSON(req.Context(), rw, e.provider.Topology())
}

// apiQuery is the http endpoint to resolve a name with the resolver of the test bed
func (e *QueryEndpoint) apiQuery(rw http.ResponseWriter, req *http.Request) {
	var queryRequest QueryRequest

	rw.Header().Set(contentTypeHeader, jsonContentType)

	if err := json.NewDecoder(req.Body).Decode(&queryRequest); err != nil {
		logAndResponseWithError(req.Context(), rw, http.StatusBadRequest, "can't read request: ", err)

		return
	}

	qType := dns.Type(dns.StringToType[strings.ToUpper(queryRequest.Type)])
	if qType == dns.Type(dns.TypeNone) {
		logAndResponseWithError(req.Context(), rw, http.StatusBadRequest, "",
			fmt.Errorf("unknown query type '%s'", queryRequest.Type))

		return
	}

	name, err := model.NewFQDN(queryRequest.Query)
	if err != nil {
		logAndResponseWithError(req.Context(), rw, http.StatusBadRequest, "", err)

		return
	}

	resp, err := e.querier.Query(req.Context(), name, qType, queryRequest.DNSSEC, queryRequest.CheckingDisabled)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, client.ErrNoResponse) {
			status = http.StatusGatewayTimeout
		}

		logAndResponseWithError(req.Context(), rw, status, "query failed: ", err)

		return
	}

	writeJSON(req.Context(), rw, NewQueryResult(resp))
}

// NewQueryResult converts a response of the query driver
func NewQueryResult(resp *client.Response) QueryResult {
	result := QueryResult{
		ReturnCode: resp.Status.String(),
		Flags:      resp.Flags.String(),
		Answer:     make([]string, 0, len(resp.Answer)),
	}

	for _, r := range resp.Answer {
		result.Answer = append(result.Answer, strings.ReplaceAll(r.String(), "\t", " "))
	}

	if ede := resp.ExtendedError; ede != nil {
		result.ExtendedError = fmt.Sprintf("%d %s", ede.Code, ede.Text)
	}

	return result
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, value any) {
	rw.Header().Set(contentTypeHeader, jsonContentType)

	response, err := json.Marshal(value)
	if err != nil {
		logAndResponseWithError(ctx, rw, http.StatusInternalServerError, "unable to marshal response: ", err)

		return
	}

	if _, err := rw.Write(response); err != nil {
		log.FromCtx(ctx).Error("unable to write response: ", log.EscapeInput(err.Error()))
	}
}

func logAndResponseWithError(ctx context.Context, rw http.ResponseWriter, status int, message string, err error) {
	log.FromCtx(ctx).Error(message, log.EscapeInput(err.Error()))

	http.Error(rw, log.EscapeInput(err.Error()), status)
}
