// Package feed is the upstream transit API client.
//
// It performs the three queries a lookup cycle needs (stop by code, planned
// arrivals, realtime arrivals), normalizes the loosely shaped upstream rows into
// the arrivals types, and classifies every failure into one of four kinds:
// invalid input, not found, transport and decode. Callers test kinds with
// errors.Is against ErrInvalidInput, ErrNotFound, ErrTransport and ErrDecode.
//
// Realtime arrivals are fetched through an ordered list of strategies. The
// first strategy that succeeds wins; a transport failure moves on to the next.
package feed
