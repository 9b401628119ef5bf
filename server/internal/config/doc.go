// Package config loads the server configuration from config.yaml.
//
// Sections:
//   - server: gRPC/HTTP ports, log level, API key auth, snapshot TTL
//   - alerts: thresholds, severity→policy map, escalation policies,
//     notification channels, history limit, maintenance schedule, rate window
//   - notify: dry-run switch, delivery timeout, SMTP/SMS/PagerDuty backends
//
// Load(path) starts from the built-in catalogue (Default), unmarshals the file
// over it, then validates. Secrets are never stored in the file: every secret
// field names an environment variable (*_env). Watch reloads the file on change.
package config
