package gtfs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// Source serves stop lookups and planned arrivals from an Index.
type Source struct {
	idx *Index
	loc *time.Location
}

var (
	_ feed.StopFinder    = (*Source)(nil)
	_ feed.PlannedSource = (*Source)(nil)
)

// NewSource wraps idx. Times are resolved in the agency timezone, falling back
// to the reference zone when the feed does not declare one.
func NewSource(idx *Index) *Source {
	loc := utils.Location()
	if idx.AgencyTimezone != "" {
		if l, err := time.LoadLocation(idx.AgencyTimezone); err == nil {
			loc = l
		}
	}
	return &Source{idx: idx, loc: loc}
}

// Index returns the underlying index.
func (s *Source) Index() *Index { return s.idx }

// RouteLabel maps a route_id to its short name, keeping the id when unnamed.
func (s *Source) RouteLabel(routeID string) string {
	if name := s.idx.RouteShortName(routeID); name != "" {
		return name
	}
	return routeID
}

// LookupStop finds the first stop with the given public code.
func (s *Source) LookupStop(_ context.Context, code, _ string) (arrivals.Stop, error) {
	code, err := feed.ValidateStopCode(code)
	if err != nil {
		return arrivals.Stop{}, err
	}
	ids := s.idx.StopIDsForCode(code)
	if len(ids) == 0 {
		return arrivals.Stop{}, feed.NewError(feed.KindNotFound, "lookup stop", fmt.Errorf("no stop with code %s", code))
	}
	st := s.idx.Stops[ids[0]]
	return arrivals.Stop{ID: ids[0], Code: st.Code, Name: st.Name, Lat: st.Lat, Lon: st.Lon}, nil
}

// ListPlanned expands the stop's calls on date and the day before (for trips
// running past midnight) and keeps those whose instant falls in [from, to].
func (s *Source) ListPlanned(ctx context.Context, stopID, date string, from, to time.Time) ([]arrivals.PlannedArrival, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, feed.NewError(feed.KindInvalidInput, "list planned", fmt.Errorf("bad service date %q", date))
	}

	var out []arrivals.PlannedArrival
	for _, serviceDate := range []time.Time{day.AddDate(0, 0, -1), day} {
		if err := ctx.Err(); err != nil {
			return nil, feed.NewError(feed.KindTransport, "list planned", err)
		}
		base := ServiceDayStart(serviceDate, s.loc)
		for _, call := range s.idx.CallsAtStop(stopID) {
			trip, ok := s.idx.Trips[call.TripID]
			if !ok || !s.idx.ServiceActive(trip.ServiceID, serviceDate) {
				continue
			}
			p := s.planned(call, trip, base)
			if at := p.Instant(); at == nil || at.Before(from) || at.After(to) {
				continue
			}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Instant().Before(*out[j].Instant()) })
	return out, nil
}

func (s *Source) planned(call StopTime, trip Trip, base time.Time) arrivals.PlannedArrival {
	route := s.idx.Routes[trip.RouteID]
	seq := call.StopSequence
	p := arrivals.PlannedArrival{
		ID:           call.TripID + ":" + strconv.Itoa(seq),
		LineLabel:    s.RouteLabel(trip.RouteID),
		RouteLong:    trip.Headsign,
		JourneyRef:   call.TripID,
		StopSequence: &seq,
	}
	if p.RouteLong == "" {
		p.RouteLong = route.LongName
	}
	if call.Arrival >= 0 {
		t := base.Add(time.Duration(call.Arrival) * time.Second).UTC()
		p.ArrivalAt = &t
	}
	if call.Departure >= 0 {
		t := base.Add(time.Duration(call.Departure) * time.Second).UTC()
		p.DepartureAt = &t
	}
	return p
}

// ScheduledAt returns the timetabled arrival and departure of a trip at a stop.
// startDate is YYYYMMDD; when empty the trip is placed on today's service day
// or, failing that, yesterday's. stopSequence narrows loops that visit the
// stop twice. Unknown calls resolve to nil.
func (s *Source) ScheduledAt(tripID, stopID string, stopSequence *uint32, startDate string) (arrival, departure *time.Time) {
	trip, ok := s.idx.Trips[tripID]
	if !ok {
		return nil, nil
	}
	var call *StopTime
	for i, st := range s.idx.CallsAtStop(stopID) {
		if st.TripID != tripID {
			continue
		}
		if stopSequence != nil && st.StopSequence != int(*stopSequence) {
			continue
		}
		call = &s.idx.StopTimes[stopID][i]
		break
	}
	if call == nil {
		return nil, nil
	}
	day, ok := s.serviceDate(trip, startDate)
	if !ok {
		return nil, nil
	}
	p := s.planned(*call, trip, ServiceDayStart(day, s.loc))
	return p.ArrivalAt, p.DepartureAt
}

func (s *Source) serviceDate(trip Trip, startDate string) (time.Time, bool) {
	if startDate != "" {
		day, err := time.ParseInLocation("20060102", startDate, s.loc)
		return day, err == nil
	}
	today := utils.Now().In(s.loc)
	for _, day := range []time.Time{today, today.AddDate(0, 0, -1)} {
		if s.idx.ServiceActive(trip.ServiceID, day) {
			return day, true
		}
	}
	return time.Time{}, false
}
