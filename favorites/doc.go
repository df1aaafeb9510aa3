// Package favorites keeps the user's favorite stops and line labels.
//
// A single Manager owns the state and serializes writes. Changes fan out to
// in-process subscribers over channels, are persisted best-effort through a
// Persister (SQLite in production) and announced to other processes through
// a Notifier (NATS in production).
package favorites
