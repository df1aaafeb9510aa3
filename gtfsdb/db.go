// Package gtfsdb serves stop lookups and planned arrivals from a GTFS feed
// imported into PostgreSQL (stops, routes, trips, stop_times, calendar,
// calendar_dates tables with the standard GTFS column names).
package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfs"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// Open connects to dsn using the pgx driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Ping checks connectivity with a short timeout.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Source implements feed.StopFinder and feed.PlannedSource over PostgreSQL.
type Source struct {
	db     *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

var (
	_ feed.StopFinder    = (*Source)(nil)
	_ feed.PlannedSource = (*Source)(nil)
)

// NewSource wraps db. loc is the agency timezone; nil selects the reference zone.
func NewSource(db *sql.DB, loc *time.Location, logger *zap.Logger) *Source {
	if loc == nil {
		loc = utils.Location()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{db: db, loc: loc, logger: logger}
}

func dbError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return feed.NewError(feed.KindTransport, op, err)
	}
	return feed.NewError(feed.KindTransport, op, fmt.Errorf("query: %w", err))
}

// LookupStop finds a stop by its public code.
func (s *Source) LookupStop(ctx context.Context, code, _ string) (arrivals.Stop, error) {
	const op = "lookup stop"
	code, err := feed.ValidateStopCode(code)
	if err != nil {
		return arrivals.Stop{}, err
	}
	q := `SELECT stop_id, COALESCE(stop_code::text, ''), COALESCE(stop_name, ''), stop_lat, stop_lon
          FROM stops WHERE stop_code::text = $1 ORDER BY stop_id LIMIT 1`
	var (
		stop     arrivals.Stop
		lat, lon sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx, q, code).Scan(&stop.ID, &stop.Code, &stop.Name, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return arrivals.Stop{}, feed.NewError(feed.KindNotFound, op, fmt.Errorf("no stop with code %s", code))
	}
	if err != nil {
		return arrivals.Stop{}, dbError(op, err)
	}
	if lat.Valid {
		stop.Lat = &lat.Float64
	}
	if lon.Valid {
		stop.Lon = &lon.Float64
	}
	return stop, nil
}

// ListPlanned returns the stop's calls on date and on the previous service day
// whose instant falls in [from, to].
func (s *Source) ListPlanned(ctx context.Context, stopID, date string, from, to time.Time) ([]arrivals.PlannedArrival, error) {
	const op = "list planned"
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, feed.NewError(feed.KindInvalidInput, op, fmt.Errorf("bad service date %q", date))
	}

	var out []arrivals.PlannedArrival
	for _, serviceDate := range []time.Time{day.AddDate(0, 0, -1), day} {
		services, err := s.activeServiceIDs(ctx, serviceDate)
		if err != nil {
			return nil, dbError(op, err)
		}
		if len(services) == 0 {
			continue
		}
		calls, err := s.stopCalls(ctx, stopID, services)
		if err != nil {
			return nil, dbError(op, err)
		}
		base := gtfs.ServiceDayStart(serviceDate, s.loc)
		for _, c := range calls {
			p := c.planned(base)
			if at := p.Instant(); at == nil || at.Before(from) || at.After(to) {
				continue
			}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Instant().Before(*out[j].Instant()) })
	s.logger.Debug("planned rows from database", zap.String("stop_id", stopID), zap.Int("rows", len(out)))
	return out, nil
}

func (s *Source) activeServiceIDs(ctx context.Context, date time.Time) ([]string, error) {
	q := `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND sunday::text IN ('1','t','true','available')) OR
      ($2 = 1 AND monday::text IN ('1','t','true','available')) OR
      ($2 = 2 AND tuesday::text IN ('1','t','true','available')) OR
      ($2 = 3 AND wednesday::text IN ('1','t','true','available')) OR
      ($2 = 4 AND thursday::text IN ('1','t','true','available')) OR
      ($2 = 5 AND friday::text IN ('1','t','true','available')) OR
      ($2 = 6 AND saturday::text IN ('1','t','true','available'))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND exception_type::text IN ('1','added')
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND exception_type::text IN ('2','removed')
)
SELECT DISTINCT service_id FROM (SELECT service_id FROM base UNION SELECT service_id FROM add_exc) merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)`

	rows, err := s.db.QueryContext(ctx, q, date.Format("2006-01-02"), int(date.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("active services: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// stopCall is one stop_times row joined with its trip and route.
type stopCall struct {
	TripID    string
	Sequence  int
	Arrival   string
	Departure string
	RouteID   string
	ShortName string
	LongName  string
	Headsign  string
}

func (s *Source) stopCalls(ctx context.Context, stopID string, services []string) ([]stopCall, error) {
	q := `SELECT st.trip_id, st.stop_sequence,
                 COALESCE(st.arrival_time::text, ''), COALESCE(st.departure_time::text, ''),
                 r.route_id, COALESCE(r.route_short_name, ''), COALESCE(r.route_long_name, ''),
                 COALESCE(t.trip_headsign, '')
          FROM stop_times st
          JOIN trips t ON t.trip_id = st.trip_id
          JOIN routes r ON r.route_id = t.route_id
          WHERE st.stop_id = $1 AND t.service_id = ANY($2)`
	rows, err := s.db.QueryContext(ctx, q, stopID, services)
	if err != nil {
		return nil, fmt.Errorf("stop calls: %w", err)
	}
	defer rows.Close()
	var calls []stopCall
	for rows.Next() {
		var c stopCall
		if err := rows.Scan(&c.TripID, &c.Sequence, &c.Arrival, &c.Departure, &c.RouteID, &c.ShortName, &c.LongName, &c.Headsign); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func (c stopCall) planned(base time.Time) arrivals.PlannedArrival {
	seq := c.Sequence
	p := arrivals.PlannedArrival{
		ID:           c.TripID + ":" + strconv.Itoa(seq),
		LineLabel:    c.ShortName,
		RouteLong:    c.Headsign,
		JourneyRef:   c.TripID,
		StopSequence: &seq,
	}
	if p.LineLabel == "" {
		p.LineLabel = c.RouteID
	}
	if p.RouteLong == "" {
		p.RouteLong = c.LongName
	}
	if secs, ok := gtfs.ParseServiceTime(c.Arrival); ok {
		t := base.Add(time.Duration(secs) * time.Second).UTC()
		p.ArrivalAt = &t
	}
	if secs, ok := gtfs.ParseServiceTime(c.Departure); ok {
		t := base.Add(time.Duration(secs) * time.Second).UTC()
		p.DepartureAt = &t
	}
	return p
}
