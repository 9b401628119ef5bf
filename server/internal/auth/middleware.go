package auth

import (
	"net/http"
	"strings"
)

// Middleware returns an http.Handler that rejects requests whose header does
// not carry key with 401. Paths listed in open bypass the check.
//
// Browsers cannot set headers on WebSocket upgrades, so the key is also
// accepted from the "api_key" query parameter.
func Middleware(mode, header, key string, open ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled(mode, key) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range open {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}
			got := r.Header.Get(header)
			if got == "" {
				got = r.URL.Query().Get("api_key")
			}
			if got == "" || !validKey(got, key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `APIKey header="`+strings.ToLower(header)+`"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid api key"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
