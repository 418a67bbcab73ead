package routing

import (
	"errors"
	"net/http"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/response"
)

// ErrHalt stops a chain without reporting an error
var ErrHalt = errors.New("chain halted")

// Context is the per-request state threaded through a handler chain.
// Request metadata is fixed on entry; Body and Form are filled by the
// decoding stages and read by the stages after them.
type Context struct {
	Request   *http.Request
	Response  *response.Response
	Params    map[string]string
	Owner     string
	RequestID string

	Body       *bodyparser.Body
	Form       *bodyparser.Multipart
	BodyParsed bool
}

// Handler is one stage of a route's chain
type Handler func(c *Context) error

// Chain is an ordered list of handlers run sequentially
type Chain []Handler

// Run executes each handler in order, stopping at the first error.
// ErrHalt ends the chain early and is not reported.
func (ch Chain) Run(c *Context) error {
	for _, h := range ch {
		if err := h(c); err != nil {
			if errors.Is(err, ErrHalt) {
				return nil
			}
			return err
		}
	}
	return nil
}
