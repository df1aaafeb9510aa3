// Package lookup runs lookup cycles: resolve a stop, fetch planned and
// realtime arrivals concurrently, reconcile them and trim the result for
// display. Board keeps per-session display state and auto-refresh.
package lookup
