package webhook

import (
	"net/http"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/triggers"
)

// acceptedReply is sent when nothing downstream answered the request
type acceptedReply struct {
	Status string `json:"status"`
	MsgID  string `json:"msgid"`
}

func (n *Node) parseMultipart(c *routing.Context) error {
	if !bodyparser.IsMultipart(c.Request) {
		return nil
	}
	form, err := n.decoder.DecodeMultipart(c.Request)
	if err != nil {
		return err
	}
	c.Form = form
	c.BodyParsed = true
	return nil
}

func (n *Node) decodeBody(c *routing.Context) error {
	if c.BodyParsed {
		return nil
	}
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
		return nil
	}
	body, err := n.decoder.DecodeRequest(c.Request)
	if err != nil {
		return err
	}
	c.Body = body
	c.BodyParsed = true
	return nil
}

func (n *Node) callback(cfg triggers.Config) routing.Handler {
	return func(c *routing.Context) error {
		meta := requestMetadata(c)
		msgID, err := n.OnInboundActivation(c.Request.Context(), payloadFor(cfg.Method(), c), meta, c.Response)
		if err != nil {
			return err
		}
		if !c.Response.Written() {
			c.Response.Status(http.StatusOK).JSON(acceptedReply{Status: "accepted", MsgID: msgID})
		}
		return nil
	}
}

func (n *Node) onError(c *routing.Context, err error) {
	n.logger.Warn("Inbound request failed",
		logging.Err(err),
		logging.Field{Key: "method", Value: c.Request.Method},
		logging.Field{Key: "path", Value: c.Request.URL.Path},
		logging.Field{Key: "request_id", Value: c.RequestID},
	)
	if !c.Response.Written() {
		c.Response.SendStatus(http.StatusInternalServerError)
	}
}

// payloadFor picks the activation payload: the body for methods that carry
// one, the query for GET, nothing otherwise.
func payloadFor(method string, c *routing.Context) interface{} {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions:
		if c.Form != nil {
			return c.Form.Fields
		}
		if c.Body != nil {
			return c.Body.Value()
		}
		return ""
	case http.MethodGet:
		return queryPayload(c.Request)
	default:
		return nil
	}
}

// queryPayload flattens single-valued query parameters to strings
func queryPayload(r *http.Request) map[string]interface{} {
	out := make(map[string]interface{})
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			out[key] = values[0]
		} else {
			out[key] = values
		}
	}
	return out
}

func requestMetadata(c *routing.Context) *triggers.RequestMetadata {
	r := c.Request
	meta := &triggers.RequestMetadata{
		Method:     r.Method,
		Path:       r.URL.Path,
		Params:     c.Params,
		Query:      r.URL.Query(),
		Headers:    r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	}
	if cookies := r.Cookies(); len(cookies) > 0 {
		meta.Cookies = make(map[string]string, len(cookies))
		for _, ck := range cookies {
			meta.Cookies[ck.Name] = ck.Value
		}
	}
	if c.Form != nil {
		meta.Files = c.Form.Files
	}
	return meta
}
