package response

import (
	"net/http"

	"scheduler-webhook/internal/common/logging"
)

// Facade wraps a Responder handed to flow nodes. Every call logs a
// deprecation warning naming the operation, then forwards to the wrapped
// handle. Chainable calls that return the wrapped handle return the facade
// instead so chains stay on the facade.
type Facade struct {
	res    Responder
	logger logging.Logger
}

// NewFacade wraps res; warnings go to logger
func NewFacade(res Responder, logger logging.Logger) *Facade {
	return &Facade{res: res, logger: logger}
}

// Unwrap returns the wrapped handle
func (f *Facade) Unwrap() Responder {
	return f.res
}

func (f *Facade) warn(method string) {
	f.logger.Warn("Deprecated call to msg.res."+method, logging.Field{Key: "method", Value: "msg.res." + method})
}

func (f *Facade) chain(result Responder) Responder {
	if result == f.res {
		return f
	}
	return result
}

// Status sets the status code on the wrapped handle
func (f *Facade) Status(code int) Responder {
	f.warn("status")
	return f.chain(f.res.Status(code))
}

// Set replaces a response header
func (f *Facade) Set(field, value string) Responder {
	f.warn("set")
	return f.chain(f.res.Set(field, value))
}

// Append adds a value to a response header
func (f *Facade) Append(field, value string) Responder {
	f.warn("append")
	return f.chain(f.res.Append(field, value))
}

// Get returns a response header; it does not chain
func (f *Facade) Get(field string) string {
	f.warn("get")
	return f.res.Get(field)
}

// Type sets Content-Type from a MIME type or extension
func (f *Facade) Type(contentType string) Responder {
	f.warn("type")
	return f.chain(f.res.Type(contentType))
}

// Vary adds field to the Vary header
func (f *Facade) Vary(field string) Responder {
	f.warn("vary")
	return f.chain(f.res.Vary(field))
}

// Location sets the Location header
func (f *Facade) Location(url string) Responder {
	f.warn("location")
	return f.chain(f.res.Location(url))
}

// Links sets the Link header from rel to URL pairs
func (f *Facade) Links(links map[string]string) Responder {
	f.warn("links")
	return f.chain(f.res.Links(links))
}

// Cookie adds a Set-Cookie header
func (f *Facade) Cookie(cookie *http.Cookie) Responder {
	f.warn("cookie")
	return f.chain(f.res.Cookie(cookie))
}

// ClearCookie expires the named cookie
func (f *Facade) ClearCookie(name string) Responder {
	f.warn("clearCookie")
	return f.chain(f.res.ClearCookie(name))
}

// Attachment marks the response as a download, optionally named
func (f *Facade) Attachment(filename string) Responder {
	f.warn("attachment")
	return f.chain(f.res.Attachment(filename))
}

// Send writes body and ends the response
func (f *Facade) Send(body interface{}) Responder {
	f.warn("send")
	return f.chain(f.res.Send(body))
}

// JSON writes v as JSON and ends the response
func (f *Facade) JSON(v interface{}) Responder {
	f.warn("json")
	return f.chain(f.res.JSON(v))
}

// JSONP writes v as JSON, wrapped in the callback query parameter when present
func (f *Facade) JSONP(v interface{}) Responder {
	f.warn("jsonp")
	return f.chain(f.res.JSONP(v))
}

// SendStatus ends the response with code and its status text
func (f *Facade) SendStatus(code int) Responder {
	f.warn("sendStatus")
	return f.chain(f.res.SendStatus(code))
}

// End ends the response without a body
func (f *Facade) End() Responder {
	f.warn("end")
	return f.chain(f.res.End())
}

// Redirect ends the response with a redirect to url
func (f *Facade) Redirect(code int, url string) {
	f.warn("redirect")
	f.res.Redirect(code, url)
}

// SendFile streams the file at path
func (f *Facade) SendFile(path string) error {
	f.warn("sendFile")
	return f.res.SendFile(path)
}

// Download streams the file at path as an attachment named filename
func (f *Facade) Download(path, filename string) error {
	f.warn("download")
	return f.res.Download(path, filename)
}
