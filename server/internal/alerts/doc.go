// Package alerts implements the alert evaluation and escalation engine.
//
// A metrics snapshot for a repository is run through every enabled threshold
// (Registry, Evaluator). Breaches become alerts keyed by (repository, type);
// at most one alert per key is active at a time (Store). New alerts start an
// escalation policy: each stage fires at a fixed offset from alert creation
// and fans out to notification channels through a Notifier. Alerts end by
// manual resolution, metric recovery or the policy's auto-resolve timeout;
// every pending stage for the key is cancelled when that happens.
//
// Operations on the same key are serialized by a per-key lock; different
// repositories evaluate in parallel.
//
// Tests in this package use testify's require and assert. Most cases compare
// whole alert records or delivery sequences, and require stops a case at the
// first broken precondition. The storage and transport packages (config,
// store, api, ws, auth) keep plain testing.
package alerts
