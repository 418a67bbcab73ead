// Package bodyparser decides whether a raw request body is text or binary
// from its declared media type, sniffing UTF-8 validity for application/*
// types that do not declare themselves.
package bodyparser

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"scheduler-webhook/internal/common/errors"
)

// DefaultMaxBytes is the body limit used when none is configured (5mb)
const DefaultMaxBytes int64 = 5 << 20

// Strategy is the decoding decision taken from a content type
type Strategy int

const (
	// StrategyText decodes the body as UTF-8 text
	StrategyText Strategy = iota
	// StrategyBinary keeps the raw bytes
	StrategyBinary
	// StrategySniff reads bytes and promotes them to text when they are valid UTF-8
	StrategySniff
)

func (s Strategy) String() string {
	switch s {
	case StrategyText:
		return "text"
	case StrategyBinary:
		return "binary"
	case StrategySniff:
		return "sniff"
	default:
		return "unknown"
	}
}

// opaqueApplicationTypes are application/* subtypes never sniffed
var opaqueApplicationTypes = map[string]bool{
	"octet-stream": true,
	"cbor":         true,
	"x-protobuf":   true,
}

// Classify maps a Content-Type header value to a decoding strategy.
// An absent header means text. A header that cannot be parsed is sniffed.
func Classify(contentType string) Strategy {
	if strings.TrimSpace(contentType) == "" {
		return StrategyText
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return StrategySniff
	}

	top, sub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return StrategySniff
	}

	suffix := ""
	if i := strings.LastIndex(sub, "+"); i >= 0 {
		suffix = sub[i+1:]
	}

	switch {
	case top == "text":
		return StrategyText
	case sub == "xml" || suffix == "xml":
		return StrategyText
	case top != "application":
		return StrategyBinary
	case opaqueApplicationTypes[sub]:
		return StrategyBinary
	default:
		return StrategySniff
	}
}

// Body is a decoded request body. Exactly one of Text or Raw is meaningful,
// as reported by IsText.
type Body struct {
	Text   string
	Raw    []byte
	isText bool
}

// IsText reports whether the body was decoded to text
func (b *Body) IsText() bool {
	return b.isText
}

// Value returns the decoded text or the raw bytes
func (b *Body) Value() interface{} {
	if b.isText {
		return b.Text
	}
	return b.Raw
}

// Len returns the body size in bytes
func (b *Body) Len() int {
	if b.isText {
		return len(b.Text)
	}
	return len(b.Raw)
}

// Decoder reads and classifies request bodies up to MaxBytes
type Decoder struct {
	MaxBytes int64
}

// NewDecoder creates a decoder with the given limit, or DefaultMaxBytes if limit <= 0
func NewDecoder(limit int64) *Decoder {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	return &Decoder{MaxBytes: limit}
}

// DecodeRequest decodes the body of r using its Content-Type and Content-Length
func (d *Decoder) DecodeRequest(r *http.Request) (*Body, error) {
	if r.Body == nil {
		return &Body{isText: true}, nil
	}
	return d.Decode(r.Header.Get("Content-Type"), r.ContentLength, r.Body)
}

// Decode reads the whole stream before deciding, since UTF-8 validity needs
// the complete byte sequence. declaredLength < 0 means unknown. Any read
// failure or overflow is a BodyReadError and no Body is returned.
func (d *Decoder) Decode(contentType string, declaredLength int64, body io.Reader) (*Body, error) {
	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	if declaredLength > limit {
		return nil, errors.BodyReadError(fmt.Sprintf("request entity too large: %d > %d bytes", declaredLength, limit), nil)
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, errors.BodyReadError("failed to read request body", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.BodyReadError(fmt.Sprintf("request entity too large: limit is %d bytes", limit), nil)
	}
	if declaredLength >= 0 && int64(len(data)) != declaredLength {
		return nil, errors.BodyReadError(fmt.Sprintf("request size did not match content length: got %d, want %d", len(data), declaredLength), nil)
	}

	switch Classify(contentType) {
	case StrategyText:
		return &Body{Text: strings.ToValidUTF8(string(data), "\uFFFD"), isText: true}, nil
	case StrategySniff:
		if utf8.Valid(data) {
			return &Body{Text: string(data), isText: true}, nil
		}
	}
	return &Body{Raw: data}, nil
}
