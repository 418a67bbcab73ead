package bodyparser

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"scheduler-webhook/internal/common/errors"
)

// File is an uploaded multipart file held in memory
type File struct {
	FieldName   string `json:"fieldname"`
	FileName    string `json:"originalname"`
	ContentType string `json:"mimetype"`
	Size        int64  `json:"size"`
	Data        []byte `json:"buffer"`
}

// Multipart is a parsed multipart/form-data body
type Multipart struct {
	Fields map[string]interface{}
	Files  []File
}

// IsMultipart reports whether r declares a multipart/form-data body
func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// DecodeMultipart reads every part of a multipart/form-data request into
// memory. Fields with a single value map to a string, repeated fields to a
// []string.
func (d *Decoder) DecodeMultipart(r *http.Request) (*Multipart, error) {
	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if r.ContentLength > limit {
		return nil, errors.BodyReadError(fmt.Sprintf("request entity too large: %d > %d bytes", r.ContentLength, limit), nil)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.BodyReadError("invalid multipart body", err)
	}

	values := make(map[string][]string)
	out := &Multipart{Fields: make(map[string]interface{})}
	for {
		part, err := reader.NextPart()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.BodyReadError("failed to read multipart body", err)
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, errors.BodyReadError("failed to read multipart part", err)
		}

		if part.FileName() == "" {
			values[part.FormName()] = append(values[part.FormName()], string(data))
			continue
		}
		out.Files = append(out.Files, File{
			FieldName:   part.FormName(),
			FileName:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        int64(len(data)),
			Data:        data,
		})
	}

	for name, v := range values {
		if len(v) == 1 {
			out.Fields[name] = v[0]
		} else {
			out.Fields[name] = v
		}
	}
	return out, nil
}
