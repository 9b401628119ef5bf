// Package notify routes escalation notifications to channels.
//
// The Router owns the channel registry and a per-channel sliding-window rate
// limiter, and dispatches by channel type to a Sender. Senders for Slack,
// email (SMTP), SMS (Twilio-compatible API), PagerDuty Events v2 and signed
// generic webhooks are provided; LogSender replaces all of them in dry-run
// mode. Delivery is best effort: nothing is retried or queued.
//
// Like package alerts, tests here use testify's require and assert: they
// check delivery records and wrapped sentinel errors.
package notify
