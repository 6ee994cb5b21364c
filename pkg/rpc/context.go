package rpc

import (
	"context"

	"github.com/omniledger/signet/pkg/sign"
)

const defaultErrorMessage = "an error occurred while processing the request"

// Handler processes an RPC request. Middleware handlers call c.Next() to
// pass control down the chain; the final handler sets the response with
// Succeed or Fail.
type Handler func(c *Context)

// Context carries one request through its handler chain and accumulates the
// response.
type Context struct {
	// Context is the standard request context; it is cancelled when the
	// connection closes.
	context.Context

	// Signer signs the response payload.
	Signer *sign.Signer
	// Request is the inbound message.
	Request Request
	// Response is filled in by Succeed or Fail.
	Response Response

	handlers []Handler
}

// Next executes the next handler in the chain, if any.
func (c *Context) Next() {
	if len(c.handlers) == 0 {
		return
	}

	handler := c.handlers[0]
	c.handlers = c.handlers[1:]
	handler(c)
}

// Succeed sets a successful response with the given method and parameters.
func (c *Context) Succeed(method string, params Params) {
	c.Response = NewResponse(NewPayload(c.Request.Req.RequestID, method, params))
}

// Fail sets an error response for the request.
//
// When err is an rpc.Error its exact message is sent to the client; any
// other error is replaced by fallbackMessage so internal detail never leaks.
// An empty fallback becomes a generic message.
func (c *Context) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	if _, ok := err.(Error); ok {
		message = err.Error()
	}
	if message == "" {
		message = defaultErrorMessage
	}

	c.Response = NewErrorResponse(c.Request.Req.RequestID, message)
}

// GetRawResponse signs the response payload and returns the complete
// message as bytes.
func (c *Context) GetRawResponse() ([]byte, error) {
	return prepareRawResponse(c.Signer, c.Response.Res)
}
