// Package response provides the outbound response handle passed to the flow
// engine with every HTTP activation, and a facade that flags direct use of it.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Responder is the fluent response API exposed to downstream flow nodes.
// Chainable operations return the Responder they were called on.
type Responder interface {
	Status(code int) Responder
	Set(field, value string) Responder
	Append(field, value string) Responder
	Get(field string) string
	Type(contentType string) Responder
	Vary(field string) Responder
	Location(url string) Responder
	Links(links map[string]string) Responder
	Cookie(cookie *http.Cookie) Responder
	ClearCookie(name string) Responder
	Attachment(filename string) Responder
	Send(body interface{}) Responder
	JSON(v interface{}) Responder
	JSONP(v interface{}) Responder
	SendStatus(code int) Responder
	End() Responder
	Redirect(code int, url string)
	SendFile(path string) error
	Download(path, filename string) error
}

var callbackPattern = regexp.MustCompile(`[^\[\]\w$.]`)

// Response is the real response handle bound to one inbound request
type Response struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	req     *http.Request
	status  int
	written bool
	closed  bool
}

// New binds a Response to the writer and request of an inbound call
func New(w http.ResponseWriter, req *http.Request) *Response {
	return &Response{w: w, req: req, status: http.StatusOK}
}

// Written reports whether headers have been sent
func (r *Response) Written() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// StatusCode returns the status that was, or will be, sent
func (r *Response) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Close detaches the handle from its writer once the HTTP handler returned.
// Later writes are dropped.
func (r *Response) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Response) Status(code int) Responder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.written {
		r.status = code
	}
	return r
}

func (r *Response) Set(field, value string) Responder {
	r.header().Set(field, value)
	return r
}

func (r *Response) Append(field, value string) Responder {
	r.header().Add(field, value)
	return r
}

func (r *Response) Get(field string) string {
	return r.header().Get(field)
}

// Type sets Content-Type. Bare extensions such as "json" or ".html" are
// resolved through the mime table.
func (r *Response) Type(contentType string) Responder {
	if !strings.Contains(contentType, "/") {
		ext := contentType
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if resolved := mime.TypeByExtension(ext); resolved != "" {
			contentType = resolved
		} else {
			contentType = "application/octet-stream"
		}
	}
	r.header().Set("Content-Type", contentType)
	return r
}

func (r *Response) Vary(field string) Responder {
	for _, existing := range r.header().Values("Vary") {
		for _, v := range strings.Split(existing, ",") {
			if strings.EqualFold(strings.TrimSpace(v), field) {
				return r
			}
		}
	}
	r.header().Add("Vary", field)
	return r
}

func (r *Response) Location(url string) Responder {
	r.header().Set("Location", url)
	return r
}

func (r *Response) Links(links map[string]string) Responder {
	rels := make([]string, 0, len(links))
	for rel := range links {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	parts := make([]string, 0, len(rels))
	for _, rel := range rels {
		parts = append(parts, fmt.Sprintf(`<%s>; rel="%s"`, links[rel], rel))
	}
	if existing := r.header().Get("Link"); existing != "" {
		parts = append([]string{existing}, parts...)
	}
	r.header().Set("Link", strings.Join(parts, ", "))
	return r
}

func (r *Response) Cookie(cookie *http.Cookie) Responder {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	r.header().Add("Set-Cookie", cookie.String())
	return r
}

func (r *Response) ClearCookie(name string) Responder {
	return r.Cookie(&http.Cookie{
		Name:    name,
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
}

func (r *Response) Attachment(filename string) Responder {
	if filename == "" {
		r.header().Set("Content-Disposition", "attachment")
		return r
	}
	r.header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(filename)}))
	return r.Type(filepath.Ext(filename))
}

// Send writes body with a content type inferred from its Go type: strings
// default to text/html, byte slices to application/octet-stream and
// anything else is encoded as JSON.
func (r *Response) Send(body interface{}) Responder {
	switch v := body.(type) {
	case nil:
		return r.End()
	case string:
		r.defaultType("text/html; charset=utf-8")
		r.write([]byte(v))
	case []byte:
		r.defaultType("application/octet-stream")
		r.write(v)
	default:
		return r.JSON(v)
	}
	return r
}

func (r *Response) JSON(v interface{}) Responder {
	data, err := json.Marshal(v)
	if err != nil {
		r.Status(http.StatusInternalServerError)
		r.header().Set("Content-Type", "text/plain; charset=utf-8")
		r.write([]byte(err.Error()))
		return r
	}
	r.defaultType("application/json; charset=utf-8")
	r.write(data)
	return r
}

// JSONP wraps the JSON body in the function named by the "callback" query
// parameter; without one it behaves like JSON.
func (r *Response) JSONP(v interface{}) Responder {
	callback := ""
	if r.req != nil {
		callback = callbackPattern.ReplaceAllString(r.req.URL.Query().Get("callback"), "")
	}
	if callback == "" {
		return r.JSON(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return r.JSON(v)
	}
	r.header().Set("Content-Type", "text/javascript; charset=utf-8")
	r.header().Set("X-Content-Type-Options", "nosniff")
	r.write([]byte(fmt.Sprintf("/**/ typeof %s === 'function' && %s(%s);", callback, callback, data)))
	return r
}

func (r *Response) SendStatus(code int) Responder {
	r.Status(code)
	text := http.StatusText(code)
	if text == "" {
		text = fmt.Sprintf("%d", code)
	}
	r.header().Set("Content-Type", "text/plain; charset=utf-8")
	r.write([]byte(text))
	return r
}

func (r *Response) End() Responder {
	r.write(nil)
	return r
}

func (r *Response) Redirect(code int, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written || r.closed {
		return
	}
	r.written = true
	r.status = code
	http.Redirect(r.w, r.req, url, code)
}

func (r *Response) SendFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written || r.closed {
		return fmt.Errorf("response already sent")
	}
	r.written = true
	if r.status != http.StatusOK {
		r.w.WriteHeader(r.status)
		_, err = io.Copy(r.w, f)
		return err
	}
	http.ServeContent(r.w, r.req, info.Name(), info.ModTime(), f)
	return nil
}

func (r *Response) Download(path, filename string) error {
	if filename == "" {
		filename = filepath.Base(path)
	}
	r.Attachment(filename)
	return r.SendFile(path)
}

func (r *Response) header() http.Header {
	return r.w.Header()
}

func (r *Response) defaultType(contentType string) {
	if r.header().Get("Content-Type") == "" {
		r.header().Set("Content-Type", contentType)
	}
}

func (r *Response) write(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written || r.closed {
		return
	}
	r.written = true
	r.w.WriteHeader(r.status)
	if len(body) > 0 {
		_, _ = r.w.Write(body)
	}
}
