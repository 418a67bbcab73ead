package bodyparser_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/bodyparser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		want        bodyparser.Strategy
	}{
		{"", bodyparser.StrategyText},
		{"text/plain", bodyparser.StrategyText},
		{"text/csv; charset=latin1", bodyparser.StrategyText},
		{"application/xml", bodyparser.StrategyText},
		{"application/atom+xml", bodyparser.StrategyText},
		{"image/svg+xml", bodyparser.StrategyText},
		{"image/png", bodyparser.StrategyBinary},
		{"audio/mpeg", bodyparser.StrategyBinary},
		{"application/octet-stream", bodyparser.StrategyBinary},
		{"application/cbor", bodyparser.StrategyBinary},
		{"application/x-protobuf", bodyparser.StrategyBinary},
		{"application/json", bodyparser.StrategySniff},
		{"application/vnd.custom+json", bodyparser.StrategySniff},
		{"application/x-ndjson", bodyparser.StrategySniff},
		{"not a media type;;", bodyparser.StrategySniff},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, bodyparser.Classify(tt.contentType))
		})
	}
}

func TestDecode(t *testing.T) {
	invalidUTF8 := []byte{0xff, 0xfe, 0x00, 0x41}

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantText    bool
		wantValue   interface{}
	}{
		{"text plain", "text/plain", []byte("hello"), true, "hello"},
		{"text with invalid bytes replaced", "text/plain", invalidUTF8, true, "\uFFFD\x00A"},
		{"no content type", "", []byte("raw"), true, "raw"},
		{"octet stream stays binary", "application/octet-stream", []byte("looks like text"), false, []byte("looks like text")},
		{"json valid utf8", "application/json", []byte(`{"a":"é"}`), true, `{"a":"é"}`},
		{"json invalid utf8", "application/json", invalidUTF8, false, invalidUTF8},
		{"image binary", "image/png", []byte("PNG"), false, []byte("PNG")},
		{"empty body", "application/json", []byte{}, true, ""},
	}

	decoder := bodyparser.NewDecoder(1024)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decoder.Decode(tt.contentType, int64(len(tt.body)), bytes.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.IsText())
			assert.Equal(t, tt.wantValue, got.Value())
		})
	}
}

func TestDecode_Limit(t *testing.T) {
	decoder := bodyparser.NewDecoder(8)

	t.Run("declared length over limit", func(t *testing.T) {
		body, err := decoder.Decode("text/plain", 9, strings.NewReader("123456789"))
		assert.Nil(t, body)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeBodyRead))
	})

	t.Run("unknown length over limit", func(t *testing.T) {
		body, err := decoder.Decode("text/plain", -1, strings.NewReader("123456789"))
		assert.Nil(t, body)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeBodyRead))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		body, err := decoder.Decode("text/plain", -1, strings.NewReader("12345678"))
		require.NoError(t, err)
		assert.Equal(t, "12345678", body.Text)
		assert.Equal(t, 8, body.Len())
	})

	t.Run("short body", func(t *testing.T) {
		body, err := decoder.Decode("text/plain", 6, strings.NewReader("123"))
		assert.Nil(t, body)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeBodyRead))
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestDecode_ReadError(t *testing.T) {
	body, err := bodyparser.NewDecoder(0).Decode("text/plain", -1, failingReader{})
	assert.Nil(t, body)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeBodyRead))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDecodeRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`<a/>`))
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	body, err := bodyparser.NewDecoder(0).DecodeRequest(req)
	require.NoError(t, err)
	assert.True(t, body.IsText())
	assert.Equal(t, "<a/>", body.Text)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "sniff", bodyparser.StrategySniff.String())
	assert.Equal(t, "binary", bodyparser.StrategyBinary.String())
}
