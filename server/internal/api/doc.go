// Package api implements the HTTP REST API of the repowatch server.
//
// New(engine, store, opts...) returns an http.Handler that serves:
//
//	GET  /api/v1/health                      worst active severity and counts
//	GET  /api/v1/stats                       engine statistics
//	GET  /api/v1/repositories                live snapshots, by repository
//	GET  /api/v1/repositories/{repo}         last snapshot and active alerts; 404 if unknown or stale
//	POST /api/v1/repositories/{repo}/metrics evaluate a snapshot; returns created or changed alerts
//	GET  /api/v1/alerts                      active alerts (?repository=, ?severity=)
//	GET  /api/v1/alerts/{id}                 one active alert
//	POST /api/v1/alerts/{id}/acknowledge     {"actor": "..."}
//	POST /api/v1/alerts/{id}/suppress        {"duration": "30m", "actor": "..."}
//	POST /api/v1/alerts/resolve              {"repository", "type", "reason"}
//	GET  /api/v1/history                     lifecycle log, newest first (?limit=N)
//	GET  /api/v1/suppressions                active suppressions
//	GET  /api/v1/thresholds                  threshold catalogue
//	GET  /api/v1/channels                    notification channels (WithChannels)
//	POST /api/v1/maintenance                 run a sweep now (WithSweeper)
//	GET  /metrics                            Prometheus exposition (WithGatherer)
//
// {repo} is either owner/name or a single path-escaped segment.
// Responses are JSON; errors use {"error": "..."}. Method routing relies on
// net/http ServeMux patterns, so wrong methods get 405.
package api
