// Package alert delivers operator alerts out of band.
//
// Alerts are best-effort: delivery failures are logged and never fail a run.
//
// Pieces:
//   - SMTPNotifier: sends an email through an SMTP relay (Gmail by default)
//   - Throttled: suppresses repeats of the same alert using a Redis key with a TTL
//   - Dispatcher: sends alerts on background goroutines and waits for them on shutdown
package alert
