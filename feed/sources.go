package feed

import (
	"context"
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

// StopFinder resolves a human stop code to a stop.
type StopFinder interface {
	LookupStop(ctx context.Context, code, date string) (arrivals.Stop, error)
}

// PlannedSource lists scheduled arrivals for a stop within [from, to].
type PlannedSource interface {
	ListPlanned(ctx context.Context, stopID, date string, from, to time.Time) ([]arrivals.PlannedArrival, error)
}

// RealtimeSource lists realtime arrivals for a stop within [from, to].
type RealtimeSource interface {
	ListRealtime(ctx context.Context, stopID string, from, to time.Time) ([]arrivals.RealtimeArrival, error)
}

var (
	_ StopFinder     = (*Client)(nil)
	_ PlannedSource  = (*Client)(nil)
	_ RealtimeSource = (*Client)(nil)
)
