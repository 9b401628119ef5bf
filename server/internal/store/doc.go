// Package store keeps the most recent metrics snapshot per repository with
// TTL-based eviction. It is a read model for the API; alert state lives in
// the alerts package.
package store
