// Package ws streams alert activity to WebSocket clients.
//
// Hub subscribes to the alert engine and forwards every lifecycle event as it
// happens. It also sends each client a full snapshot of active alerts on a
// fixed interval and once immediately on connect.
//
// Messages:
//
//	{"event": "snapshot", "data": {"alerts": [...], "statistics": {...}, "generated_at": "..."}}
//	{"event": "alert_created" | "alert_resolved" | "alert_acknowledged" | "alert_suppressed",
//	 "data": {"type": "...", "alert": {...}, "reason": "...", "at": "..."}}
//
// The server mounts the hub at /ws/events. The upgrader accepts all origins.
package ws
