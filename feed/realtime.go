package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/stop-arrivals/siri"
)

// Realtime strategy names.
const (
	StrategyRowsExpected = "rows-expected"
	StrategyRowsAimed    = "rows-aimed"
	StrategySIRI         = "siri"
	StrategyGTFSRT       = "gtfsrt"
)

// DefaultRealtimeStrategies queries the row endpoint by expected time, then by aimed time.
var DefaultRealtimeStrategies = []string{StrategyRowsExpected, StrategyRowsAimed}

const (
	realtimeRowsPath   = "/siri/ride_stops"
	stopMonitoringPath = "/siri/stop-monitoring"
	realtimeRowsLimit  = 200
)

// RealtimeStrategy is one way of querying realtime arrivals.
type RealtimeStrategy interface {
	Name() string
	ListRealtime(ctx context.Context, stopID string, from, to time.Time) ([]arrivals.RealtimeArrival, error)
}

func (c *Client) newStrategy(name string, opts Options) (RealtimeStrategy, error) {
	switch name {
	case StrategyRowsExpected:
		return &rowsStrategy{c: c, name: name, field: "expected_arrival_time"}, nil
	case StrategyRowsAimed:
		return &rowsStrategy{c: c, name: name, field: "aimed_arrival_time"}, nil
	case StrategySIRI:
		return &siriStrategy{c: c}, nil
	case StrategyGTFSRT:
		if opts.TripUpdatesURL == "" {
			return nil, fmt.Errorf("strategy %s needs a trip updates URL", name)
		}
		return &gtfsrtStrategy{c: c, ref: opts.TripUpdatesURL, routeLabel: opts.RouteLabel, schedule: opts.Schedule}, nil
	}
	return nil, fmt.Errorf("unknown realtime strategy %q", name)
}

// ListRealtime tries each configured strategy in order. A transport failure
// falls through to the next strategy; any other failure is returned as is.
func (c *Client) ListRealtime(ctx context.Context, stopID string, from, to time.Time) (out []arrivals.RealtimeArrival, err error) {
	const op = "list realtime"
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	for i, s := range c.strategies {
		out, err = s.ListRealtime(ctx, stopID, from, to)
		if err == nil {
			if i > 0 {
				c.logger.Info("realtime fallback strategy used",
					zap.String("stop_id", stopID),
					zap.String("strategy", s.Name()))
			}
			return out, nil
		}
		if !errors.Is(err, ErrTransport) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("realtime strategy failed",
			zap.String("stop_id", stopID),
			zap.String("strategy", s.Name()),
			zap.Error(err))
	}
	return nil, err
}

// filterRealtime keeps rows inside [from, to]. Rows with no instant are kept
// for the matcher, which can still pair them by identity.
func filterRealtime(rows []arrivals.RealtimeArrival, from, to time.Time) []arrivals.RealtimeArrival {
	out := rows[:0]
	for _, r := range rows {
		if at := r.Representative(); at == nil || inWindow(at, from, to) {
			out = append(out, r)
		}
	}
	return out
}

// rowsStrategy queries the ride-stop row endpoint windowed on one time field.
type rowsStrategy struct {
	c     *Client
	name  string
	field string
}

func (s *rowsStrategy) Name() string { return s.name }

func (s *rowsStrategy) ListRealtime(ctx context.Context, stopID string, from, to time.Time) ([]arrivals.RealtimeArrival, error) {
	op := "list realtime/" + s.name
	q := url.Values{
		"stop_id":         {stopID},
		s.field + "_from": {from.UTC().Format(time.RFC3339)},
		s.field + "_to":   {to.UTC().Format(time.RFC3339)},
		"limit":           {strconv.Itoa(realtimeRowsLimit)},
	}
	body, err := s.c.get(ctx, op, realtimeRowsPath, q, "application/json")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, decode(op, err)
	}
	out := make([]arrivals.RealtimeArrival, 0, len(rows))
	for _, r := range rows {
		out = append(out, normalizeRealtime(r))
	}
	return filterRealtime(out, from, to), nil
}

func normalizeRealtime(r row) arrivals.RealtimeArrival {
	return arrivals.RealtimeArrival{
		ID:                  r.str("gtfs_ride_stop_id"),
		JourneyRef:          r.str("siri_ride__journey_ref", "gtfs_ride__journey_ref", "journey_ref"),
		AimedArrivalAt:      r.instant("aimed_arrival_time"),
		ExpectedArrivalAt:   r.instant("expected_arrival_time"),
		ActualArrivalAt:     r.instant("actual_arrival_time"),
		AimedDepartureAt:    r.instant("aimed_departure_time"),
		ExpectedDepartureAt: r.instant("expected_departure_time"),
		ActualDepartureAt:   r.instant("actual_departure_time"),
		LineLabel:           r.str("gtfs_route__route_short_name", "siri_route__line_ref", "route_short_name", "line_ref"),
		RecordedAt:          r.instant("recorded_at_time"),
	}
}

// siriStrategy queries SIRI StopMonitoring with MonitoringRef set to the stop id.
type siriStrategy struct {
	c *Client
}

func (s *siriStrategy) Name() string { return StrategySIRI }

func (s *siriStrategy) ListRealtime(ctx context.Context, stopID string, from, to time.Time) ([]arrivals.RealtimeArrival, error) {
	const op = "list realtime/" + StrategySIRI
	body, err := s.c.get(ctx, op, stopMonitoringPath, url.Values{"MonitoringRef": {stopID}}, "application/json")
	if err != nil {
		return nil, err
	}
	visits, err := siri.DecodeStopMonitoring(body)
	if err != nil {
		return nil, decode(op, err)
	}
	out := make([]arrivals.RealtimeArrival, 0, len(visits))
	for _, v := range visits {
		out = append(out, v.Arrival())
	}
	return filterRealtime(out, from, to), nil
}

// gtfsrtStrategy reads a GTFS-Realtime TripUpdates feed and keeps the stop's calls.
type gtfsrtStrategy struct {
	c          *Client
	ref        string
	routeLabel func(string) string
	schedule   gtfsrt.ScheduleFunc
}

func (s *gtfsrtStrategy) Name() string { return StrategyGTFSRT }

func (s *gtfsrtStrategy) ListRealtime(ctx context.Context, stopID string, from, to time.Time) ([]arrivals.RealtimeArrival, error) {
	const op = "list realtime/" + StrategyGTFSRT
	body, err := s.c.get(ctx, op, s.ref, nil, "application/x-protobuf")
	if err != nil {
		return nil, err
	}
	fm, err := gtfsrt.Decode(body)
	if err != nil {
		return nil, decode(op, err)
	}
	calls := gtfsrt.NewTripUpdateIndex(fm).CallsAtStop(stopID)
	out := make([]arrivals.RealtimeArrival, 0, len(calls))
	for _, call := range calls {
		out = append(out, call.Resolve(s.schedule).Realtime(s.routeLabel))
	}
	return filterRealtime(out, from, to), nil
}
