package routing_test

import (
	"testing"

	"scheduler-webhook/internal/routing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/hook", "/hook"},
		{"hook", "/hook"},
		{"//hook//inner", "/hook/inner"},
		{"", "/"},
		{"https://example.com/api/hook", "/api/hook"},
		{"http://example.com", "/"},
		{"https://example.com//a//b?x=1", "/a/b"},
		{"/hook?x=1#frag", "/hook"},
		{"  /spaced ", "/spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, routing.NormalizePath(tt.input))
		})
	}
}

func TestParamPattern(t *testing.T) {
	assert.Equal(t, "/jobs/{id}", routing.ParamPattern("jobs"))
	assert.Equal(t, "/jobs/{id}", routing.ParamPattern("/jobs/"))
	assert.Equal(t, "/{id}", routing.ParamPattern("/"))
}
