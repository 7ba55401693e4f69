package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"depindex/internal/index"
)

func TestClientFingerprint(t *testing.T) {
	cases := map[string]index.Fingerprint{
		"":        "",
		`"abc"`:   "abc",
		"abc":     "abc",
		` "abc" `: "abc",
		`""abc""`: `"abc"`,
		`W/"abc"`: `W/"abc"`,
		`"`:       `"`,
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/api/v2/names.list", nil)
		if header != "" {
			r.Header.Set("If-None-Match", header)
		}
		assert.Equal(t, want, clientFingerprint(r), header)
	}
}

func TestRequestedNames(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/dependencies?gems=rack,%20rails,,&gems=rake", nil)
	assert.Equal(t, []string{"rack", "rails", "rake"}, requestedNames(r))

	r = httptest.NewRequest("GET", "/api/v1/dependencies", nil)
	assert.Empty(t, requestedNames(r))
}
