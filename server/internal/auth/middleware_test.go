package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		mode   string
		path   string
		header string
		want   int
	}{
		{"auth off", "none", "/api/v1/alerts", "", http.StatusNoContent},
		{"correct header", "apikey", "/api/v1/alerts", "secret", http.StatusNoContent},
		{"wrong header", "apikey", "/api/v1/alerts", "nope", http.StatusUnauthorized},
		{"missing header", "apikey", "/api/v1/alerts", "", http.StatusUnauthorized},
		{"query parameter", "apikey", "/ws/events?api_key=secret", "", http.StatusNoContent},
		{"open path", "apikey", "/api/v1/health", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Middleware(tc.mode, "X-Repo-Key", "secret", "/api/v1/health")(okHandler)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("X-Repo-Key", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestMiddleware_NoKeyConfigured(t *testing.T) {
	h := Middleware("apikey", "x-api-key", "")(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
}
