package server

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// RequestResolver answers requests received by a server
type RequestResolver interface {
	Resolve(ctx context.Context, request *model.Request) (*model.Response, error)
}

// ResolvingHandler passes every received query to a resolver
type ResolvingHandler struct {
	resolver RequestResolver
	logger   *logrus.Entry
}

// NewResolvingHandler creates a DNS handler for resolver
func NewResolvingHandler(resolver RequestResolver, logger *logrus.Entry) *ResolvingHandler {
	return &ResolvingHandler{resolver: resolver, logger: logger}
}

func createResolverRequest(rw dns.ResponseWriter, request *dns.Msg, logger *logrus.Entry) *model.Request {
	var remoteAddr net.Addr

	if rw != nil {
		remoteAddr = rw.RemoteAddr()
	}

	clientIP, protocol := resolveClientIPAndProtocol(remoteAddr)

	return &model.Request{
		ClientIP: clientIP,
		Protocol: protocol,
		Req:      request,
		Log: logger.WithFields(logrus.Fields{
			"question":  util.QuestionToString(request.Question),
			"client_ip": clientIP,
		}),
		RequestTS: time.Now(),
	}
}

// ServeDNS implements dns.Handler
func (h *ResolvingHandler) ServeDNS(w dns.ResponseWriter, request *dns.Msg) {
	r := createResolverRequest(w, request, h.logger)

	ctx, logger := log.NewCtx(context.Background(), r.Log)

	response, err := h.resolver.Resolve(ctx, r)
	if err != nil {
		logger.Error("error on processing request: ", err)

		m := new(dns.Msg)
		m.SetRcode(request, dns.RcodeServerFailure)
		util.LogOnErrorWithEntry(logger, "can't write message: ", w.WriteMsg(m))

		return
	}

	response.Res.Id = request.Id
	response.Res.RecursionAvailable = true

	// truncate if necessary
	response.Res.Truncate(MaxResponseSize(w.LocalAddr().Network(), request))

	// enable compression
	response.Res.Compress = true

	util.LogOnErrorWithEntry(logger, "can't write message: ", w.WriteMsg(response.Res))
}

// MaxResponseSize returns the EDNS UDP size or if not present, 512 for UDP and 64K for TCP
func MaxResponseSize(network string, request *dns.Msg) int {
	if network == "tcp" {
		return dns.MaxMsgSize
	}

	edns := request.IsEdns0()
	if edns != nil && edns.UDPSize() > 0 {
		return int(edns.UDPSize())
	}

	return dns.MinMsgSize
}

func resolveClientIPAndProtocol(addr net.Addr) (netip.Addr, model.RequestProtocol) {
	if t, ok := addr.(*net.UDPAddr); ok {
		return t.AddrPort().Addr().Unmap(), model.RequestProtocolUDP
	} else if t, ok := addr.(*net.TCPAddr); ok {
		return t.AddrPort().Addr().Unmap(), model.RequestProtocolTCP
	}

	return netip.Addr{}, model.RequestProtocolUDP
}
