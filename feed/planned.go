package feed

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

const plannedPath = "/gtfs/planned_stop_times"

// ListPlanned returns scheduled arrivals at stopID whose instant is in [from, to].
// Rows carrying neither an arrival nor a departure time are dropped.
func (c *Client) ListPlanned(ctx context.Context, stopID, date string, from, to time.Time) (out []arrivals.PlannedArrival, err error) {
	const op = "list planned"
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	q := url.Values{
		"stop_id": {stopID},
		"from":    {from.UTC().Format(time.RFC3339)},
		"to":      {to.UTC().Format(time.RFC3339)},
		"limit":   {strconv.Itoa(c.plannedLimit)},
	}
	if date != "" {
		q.Set("date", date)
	}
	body, err := c.get(ctx, op, plannedPath, q, "application/json")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, decode(op, err)
	}

	out = make([]arrivals.PlannedArrival, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		p, ok := normalizePlanned(r)
		if !ok || !inWindow(p.Instant(), from, to) {
			dropped++
			continue
		}
		out = append(out, p)
	}
	if dropped > 0 {
		c.logger.Debug("dropped planned rows",
			zap.String("stop_id", stopID),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)))
	}
	return out, nil
}

func normalizePlanned(r row) (arrivals.PlannedArrival, bool) {
	p := arrivals.PlannedArrival{
		ID:           r.str("id", "gtfs_ride_stop_id"),
		ArrivalAt:    r.instant("arrival_time", "arrival_time_iso"),
		DepartureAt:  r.instant("departure_time", "departure_time_iso"),
		LineLabel:    r.str("gtfs_route__route_short_name", "route_short_name", "line_label", "route_id"),
		RouteLong:    r.str("gtfs_route__route_long_name", "route_long_name", "headsign", "trip_headsign"),
		JourneyRef:   r.str("gtfs_ride__journey_ref", "journey_ref"),
		StopSequence: r.integer("stop_sequence"),
	}
	if p.ArrivalAt == nil && p.DepartureAt == nil {
		p.ArrivalAt = r.instant("planned_iso")
	}
	return p, p.Instant() != nil
}
