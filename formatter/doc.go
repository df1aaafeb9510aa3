// Package formatter turns lookup results into presentation views.
//
// This package is organized into:
// - view.go: display rows (clock, ETA label, delay badge) built from joined arrivals
// - json.go: JSON serialization of views
// - text.go: plain-text board rendering for terminals
package formatter
