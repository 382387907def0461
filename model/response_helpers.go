package model

import "github.com/miekg/dns"

// NewResponseWithReason creates a response whose message replies to the request
func NewResponseWithReason(request *Request, rtype ResponseType, reason string) *Response {
	response := new(dns.Msg)
	response.SetReply(request.Req)

	return &Response{
		Res:    response,
		RType:  rtype,
		Reason: reason,
	}
}

// NewResponseWithAnswers creates a reply carrying the given answer records
func NewResponseWithAnswers(request *Request, answers []dns.RR, rtype ResponseType, reason string) *Response {
	response := NewResponseWithReason(request, rtype, reason)
	response.Res.Answer = answers

	return response
}

// NewResponseWithRcode creates an empty reply with the given return code
func NewResponseWithRcode(request *Request, rcode int, rtype ResponseType, reason string) *Response {
	response := new(dns.Msg)
	response.SetRcode(request.Req, rcode)

	return &Response{
		Res:    response,
		RType:  rtype,
		Reason: reason,
	}
}

// NewResponseFromMsg wraps an upstream message answering the request
func NewResponseFromMsg(request *Request, msg *dns.Msg, rtype ResponseType, reason string) *Response {
	msg.Id = request.Req.Id

	return &Response{
		Res:    msg,
		RType:  rtype,
		Reason: reason,
	}
}
