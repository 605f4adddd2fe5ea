package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"babyshop/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPISpecIsValid(t *testing.T) {
	_, err := LoadOpenAPIRouter(context.Background(), api.OpenAPI)
	require.NoError(t, err)
}

func TestOpenAPIMiddlewareWithInvalidSpec(t *testing.T) {
	_, err := OpenAPIValidator(OpenAPIValidatorConfig{
		Enabled: true,
		Spec:    []byte("openapi: 3.0.3\ninfo: {}\n"),
	})
	assert.Error(t, err)
}

func TestOpenAPIMiddlewareDisabled(t *testing.T) {
	mw, err := OpenAPIValidator(OpenAPIValidatorConfig{Enabled: false, Spec: []byte("garbage")})
	require.NoError(t, err)

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.True(t, called)
}

func TestOpenAPIValidator_Requests(t *testing.T) {
	mw, err := OpenAPIValidator(OpenAPIValidatorConfig{Enabled: true, Spec: api.OpenAPI})
	require.NoError(t, err)

	var body string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the validator must leave the body readable for the handler
		require.NoError(t, r.ParseForm())
		body = r.PostForm.Get("username")
		w.WriteHeader(http.StatusOK)
	}))

	form := url.Values{"username": {"anna"}, "password": {"geheim"}, "csrf_token": {"x"}}

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        int
	}{
		{"login form", http.MethodPost, "/login", "application/x-www-form-urlencoded", form.Encode(), http.StatusOK},
		{"empty login fields still reach the handler", http.MethodPost, "/login", "application/x-www-form-urlencoded", "username=&password=", http.StatusOK},
		{"json body rejected", http.MethodPost, "/login", "application/json", `{"username":"anna"}`, http.StatusBadRequest},
		{"login without password key", http.MethodPost, "/login", "application/x-www-form-urlencoded", "username=anna", http.StatusOK},
		{"login without csrf field", http.MethodPost, "/login", "application/x-www-form-urlencoded", "username=anna&password=geheim", http.StatusOK},
		{"registration form", http.MethodPost, "/register", "application/x-www-form-urlencoded", "first_name=Anna&username=anna", http.StatusOK},
		{"page view", http.MethodGet, "/register", "", "", http.StatusOK},
		{"undocumented path passes through", http.MethodGet, "/unknown", "", "", http.StatusOK},
		{"health skipped", http.MethodPost, "/health", "text/plain", "x", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body = ""
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.name == "login form" {
				assert.Equal(t, "anna", body)
			}
		})
	}
}

func TestShouldSkipPath(t *testing.T) {
	assert.True(t, shouldSkipPath("/health/ready", DefaultSkipPaths))
	assert.True(t, shouldSkipPath("/metrics", DefaultSkipPaths))
	assert.True(t, shouldSkipPath("/static/app.css", DefaultSkipPaths))
	assert.False(t, shouldSkipPath("/login", DefaultSkipPaths))
	assert.False(t, shouldSkipPath("/", DefaultSkipPaths))
}
