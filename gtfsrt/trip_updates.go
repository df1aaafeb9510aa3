package gtfsrt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

// Decode parses a protobuf FeedMessage.
func Decode(data []byte) (*gtfs.FeedMessage, error) {
	fm := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, fm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed message: %w", err)
	}
	return fm, nil
}

// StopTimeEvent is a predicted arrival or departure.
type StopTimeEvent struct {
	Time  int64  // epoch seconds, 0 when only a delay is known
	Delay *int32 // seconds
}

// StopCall is one trip's update for a given stop.
type StopCall struct {
	TripID       string
	RouteID      string
	StartDate    string
	StopID       string
	StopSequence *uint32
	Arrival      *StopTimeEvent
	Departure    *StopTimeEvent
	Timestamp    int64 // trip update or header timestamp, epoch seconds
}

// TripUpdateIndex stores stop time updates keyed by stop_id.
type TripUpdateIndex struct {
	headerTimestamp int64
	byStop          map[string][]StopCall
}

// NewTripUpdateIndex indexes every non-skipped stop time update of fm.
func NewTripUpdateIndex(fm *gtfs.FeedMessage) *TripUpdateIndex {
	ix := &TripUpdateIndex{byStop: map[string][]StopCall{}}
	if fm == nil {
		return ix
	}
	if fm.Header != nil && fm.Header.Timestamp != nil {
		ix.headerTimestamp = int64(*fm.Header.Timestamp)
	}
	for _, e := range fm.Entity {
		tu := e.GetTripUpdate()
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		if tu.Trip.GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
			continue
		}
		ts := ix.headerTimestamp
		if tu.Timestamp != nil {
			ts = int64(*tu.Timestamp)
		}
		for _, stu := range tu.StopTimeUpdate {
			if stu.StopId == nil {
				continue
			}
			if stu.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED {
				continue
			}
			call := StopCall{
				TripID:       tu.Trip.GetTripId(),
				RouteID:      tu.Trip.GetRouteId(),
				StartDate:    tu.Trip.GetStartDate(),
				StopID:       stu.GetStopId(),
				StopSequence: stu.StopSequence,
				Arrival:      event(stu.Arrival),
				Departure:    event(stu.Departure),
				Timestamp:    ts,
			}
			ix.byStop[call.StopID] = append(ix.byStop[call.StopID], call)
		}
	}
	return ix
}

func event(ev *gtfs.TripUpdate_StopTimeEvent) *StopTimeEvent {
	if ev == nil || (ev.Time == nil && ev.Delay == nil) {
		return nil
	}
	return &StopTimeEvent{Time: ev.GetTime(), Delay: ev.Delay}
}

// HeaderTimestamp returns the feed header timestamp in epoch seconds.
func (ix *TripUpdateIndex) HeaderTimestamp() int64 { return ix.headerTimestamp }

// ScheduleFunc resolves the scheduled arrival and departure of a trip at a stop.
// startDate is the trip's YYYYMMDD start date, possibly empty. Unknown calls
// resolve to nil.
type ScheduleFunc func(tripID, stopID string, stopSequence *uint32, startDate string) (arrival, departure *time.Time)

// CallsAtStop returns the updates for stopID in feed order.
func (ix *TripUpdateIndex) CallsAtStop(stopID string) []StopCall { return ix.byStop[stopID] }

// Realtime converts the call into a realtime row. ID is trip_id:stop_sequence,
// the same slot identifier the static schedule source emits. lineLabel maps a
// route_id to its short name; nil keeps the route_id.
func (c StopCall) Realtime(lineLabel func(routeID string) string) arrivals.RealtimeArrival {
	r := arrivals.RealtimeArrival{
		JourneyRef: c.TripID,
		LineLabel:  c.RouteID,
	}
	if lineLabel != nil {
		if l := lineLabel(c.RouteID); l != "" {
			r.LineLabel = l
		}
	}
	if c.StopSequence != nil {
		r.ID = c.TripID + ":" + strconv.FormatUint(uint64(*c.StopSequence), 10)
	}
	r.ExpectedArrivalAt, r.AimedArrivalAt = c.Arrival.instants()
	r.ExpectedDepartureAt, r.AimedDepartureAt = c.Departure.instants()
	if c.Timestamp > 0 {
		ts := time.Unix(c.Timestamp, 0).UTC()
		r.RecordedAt = &ts
	}
	return r
}

// Resolve fills in the time of delay-only events from the static schedule.
// Events that already carry a time, or that schedule cannot place, are kept as is.
func (c StopCall) Resolve(schedule ScheduleFunc) StopCall {
	if schedule == nil || (!c.Arrival.delayOnly() && !c.Departure.delayOnly()) {
		return c
	}
	arr, dep := schedule(c.TripID, c.StopID, c.StopSequence, c.StartDate)
	if arr == nil {
		arr = dep
	}
	if dep == nil {
		dep = arr
	}
	c.Arrival = c.Arrival.resolve(arr)
	c.Departure = c.Departure.resolve(dep)
	return c
}

func (ev *StopTimeEvent) delayOnly() bool {
	return ev != nil && ev.Time == 0 && ev.Delay != nil
}

func (ev *StopTimeEvent) resolve(scheduled *time.Time) *StopTimeEvent {
	if !ev.delayOnly() || scheduled == nil {
		return ev
	}
	return &StopTimeEvent{Time: scheduled.Unix() + int64(*ev.Delay), Delay: ev.Delay}
}

// instants returns the expected time and, when a delay is known, the aimed time
// it was derived from.
func (ev *StopTimeEvent) instants() (expected, aimed *time.Time) {
	if ev == nil || ev.Time == 0 {
		return nil, nil
	}
	exp := time.Unix(ev.Time, 0).UTC()
	if ev.Delay == nil {
		return &exp, nil
	}
	aim := exp.Add(-time.Duration(*ev.Delay) * time.Second)
	return &exp, &aim
}
