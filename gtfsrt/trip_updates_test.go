package gtfsrt

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func sampleFeed() *gtfs.FeedMessage {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).Unix()
	skipped := gtfs.TripUpdate_StopTimeUpdate_SKIPPED
	canceled := gtfs.TripDescriptor_CANCELED
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(base - 60)),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &gtfs.TripUpdate{
					Trip:      &gtfs.TripDescriptor{TripId: proto.String("T1"), RouteId: proto.String("R1")},
					Timestamp: proto.Uint64(uint64(base - 30)),
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{
							StopId:       proto.String("S1"),
							StopSequence: proto.Uint32(4),
							Arrival:      &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(base + 300), Delay: proto.Int32(120)},
						},
						{
							StopId:               proto.String("S2"),
							StopSequence:         proto.Uint32(5),
							ScheduleRelationship: &skipped,
						},
					},
				},
			},
			{
				Id: proto.String("e2"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{TripId: proto.String("T2"), RouteId: proto.String("R2")},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{
							StopId:    proto.String("S1"),
							Departure: &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(base + 600)},
						},
					},
				},
			},
			{
				Id: proto.String("e3"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{TripId: proto.String("T3"), ScheduleRelationship: &canceled},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{StopId: proto.String("S1"), Arrival: &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(base)}},
					},
				},
			},
		},
	}
}

func TestDecodeAndIndex(t *testing.T) {
	data, err := proto.Marshal(sampleFeed())
	require.NoError(t, err)

	fm, err := Decode(data)
	require.NoError(t, err)

	ix := NewTripUpdateIndex(fm)
	calls := ix.CallsAtStop("S1")
	require.Len(t, calls, 2)
	assert.Equal(t, "T1", calls[0].TripID)
	assert.Equal(t, "T2", calls[1].TripID)
	assert.Empty(t, ix.CallsAtStop("S2"), "skipped stops are dropped")
	assert.Equal(t, time.Date(2024, 1, 1, 9, 59, 0, 0, time.UTC).Unix(), ix.HeaderTimestamp())
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestStopCall_Realtime(t *testing.T) {
	ix := NewTripUpdateIndex(sampleFeed())
	calls := ix.CallsAtStop("S1")
	require.Len(t, calls, 2)

	names := map[string]string{"R1": "480"}
	first := calls[0].Realtime(func(id string) string { return names[id] })
	assert.Equal(t, "T1:4", first.ID)
	assert.Equal(t, "T1", first.JourneyRef)
	assert.Equal(t, "480", first.LineLabel)
	require.NotNil(t, first.ExpectedArrivalAt)
	require.NotNil(t, first.AimedArrivalAt)
	assert.Equal(t, 2*time.Minute, first.ExpectedArrivalAt.Sub(*first.AimedArrivalAt))
	assert.Equal(t, time.Date(2024, 1, 1, 9, 59, 30, 0, time.UTC), *first.RecordedAt)

	second := calls[1].Realtime(nil)
	assert.Empty(t, second.ID)
	assert.Equal(t, "R2", second.LineLabel)
	assert.Nil(t, second.ExpectedArrivalAt)
	require.NotNil(t, second.ExpectedDepartureAt)
	assert.Nil(t, second.AimedDepartureAt)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 59, 0, 0, time.UTC), *second.RecordedAt, "falls back to header timestamp")
}

func TestStopCall_ResolveDelayOnly(t *testing.T) {
	scheduled := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	call := StopCall{
		TripID:       "T7",
		StopID:       "S1",
		StopSequence: proto.Uint32(2),
		StartDate:    "20240101",
		Arrival:      &StopTimeEvent{Delay: proto.Int32(180)},
	}

	var gotTrip, gotDate string
	schedule := func(tripID, stopID string, seq *uint32, startDate string) (*time.Time, *time.Time) {
		gotTrip, gotDate = tripID, startDate
		return &scheduled, nil
	}

	unresolved := call.Realtime(nil)
	assert.Nil(t, unresolved.Representative(), "delay-only events have no instant on their own")

	row := call.Resolve(schedule).Realtime(nil)
	assert.Equal(t, "T7", gotTrip)
	assert.Equal(t, "20240101", gotDate)
	require.NotNil(t, row.ExpectedArrivalAt)
	require.NotNil(t, row.AimedArrivalAt)
	assert.Equal(t, scheduled, *row.AimedArrivalAt)
	assert.Equal(t, scheduled.Add(3*time.Minute), *row.ExpectedArrivalAt)
	assert.Nil(t, row.ExpectedDepartureAt)
}

func TestStopCall_ResolveKeepsTimedEvents(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC).Unix()
	call := StopCall{TripID: "T1", Arrival: &StopTimeEvent{Time: at, Delay: proto.Int32(60)}}
	called := false
	got := call.Resolve(func(string, string, *uint32, string) (*time.Time, *time.Time) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.Equal(t, at, got.Arrival.Time)

	unknown := StopCall{TripID: "T9", Arrival: &StopTimeEvent{Delay: proto.Int32(60)}}
	got = unknown.Resolve(func(string, string, *uint32, string) (*time.Time, *time.Time) { return nil, nil })
	assert.Zero(t, got.Arrival.Time, "calls missing from the schedule stay unresolved")
}
