// Package auth enforces the shared API key on both server surfaces.
//
// APIKeyInterceptor guards gRPC snapshot submission; Middleware guards the
// REST API and the event stream. Both pass everything through when the mode
// is not "apikey" or no key is configured, which keeps local development
// simple.
package auth
