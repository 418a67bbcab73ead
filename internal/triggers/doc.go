// Package triggers defines the trigger configuration, activation events and
// error sentinels shared by the reconciler, the webhook node and the host API.
//
// A trigger is a user-configured endpoint that fires activation events into
// the flow engine. Activations arrive from three sources:
//
//	┌──────────────────────┐   HTTP (inbound)    ┌──────────────┐
//	│ Cloud Scheduler job  │ ──────────────────▶ │              │
//	└──────────────────────┘                     │  route table │──┐
//	┌──────────────────────┐   HTTP (inbound)    │              │  │
//	│ any external caller  │ ──────────────────▶ └──────────────┘  │
//	└──────────────────────┘                                       ▼
//	┌──────────────────────┐   local timer      ┌──────────────────────┐
//	│ interval / once mode │ ─────────────────▶ │ Emitter (flow engine)│
//	└──────────────────────┘                    └──────────────────────┘
//
// Exactly one scheduling mode is active per trigger: cron (remote job),
// interval or once (local timers), or none (plain HTTP endpoint).
package triggers
