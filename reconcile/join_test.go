package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func intp(i int) *int { return &i }

func TestJoin_EmptyInputs(t *testing.T) {
	assert.Empty(t, Join(nil, nil))
	assert.Empty(t, Join([]arrivals.PlannedArrival{}, []arrivals.RealtimeArrival{}))
}

func TestJoin_DisjointInputsProducePlannedOnlyRows(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "p1", LineLabel: "1", JourneyRef: "j1", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "p2", LineLabel: "2", JourneyRef: "j2", DepartureAt: at("2024-01-01T10:10:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{ID: "r9", LineLabel: "99", JourneyRef: "j9", ExpectedArrivalAt: at("2024-01-01T10:05:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 2)
	for _, row := range out {
		assert.Equal(t, arrivals.TierNone, row.Tier)
		assert.Nil(t, row.RealtimeAt)
		assert.Nil(t, row.DelayMinutes)
		assert.Nil(t, row.UpdatedAt)
		assert.Nil(t, row.Realtime)
	}
}

func TestJoin_IDMatchBeatsJourneyMatch(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "slot-1", LineLabel: "5", JourneyRef: "J", DepartureAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		// same journey, much closer in time, but different slot id
		{ID: "other", JourneyRef: "J", LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:00:30Z")},
		{ID: "slot-1", JourneyRef: "X", LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:20:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 1)
	assert.Equal(t, arrivals.TierID, out[0].Tier)
	assert.Same(t, &realtime[1], out[0].Realtime)
	assert.Equal(t, at("2024-01-01T10:20:00Z"), out[0].RealtimeAt)
}

func TestJoin_JourneyPicksClosestCandidate(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "p", LineLabel: "7", JourneyRef: "J", DepartureAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{JourneyRef: "J", ExpectedArrivalAt: at("2024-01-01T10:45:00Z")},
		{JourneyRef: "J", ExpectedArrivalAt: at("2024-01-01T10:05:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 1)
	assert.Equal(t, arrivals.TierJourney, out[0].Tier)
	assert.Equal(t, at("2024-01-01T10:05:00Z"), out[0].RealtimeAt)
}

func TestJoin_LineFallback(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{LineLabel: "480", JourneyRef: "no-such-journey", ArrivalAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{LineLabel: "480", JourneyRef: "other", AimedArrivalAt: at("2024-01-01T09:50:00Z")},
		{LineLabel: "480", JourneyRef: "other2", AimedArrivalAt: at("2024-01-01T10:02:00Z")},
		{LineLabel: "1", AimedArrivalAt: at("2024-01-01T10:00:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 1)
	assert.Equal(t, arrivals.TierLine, out[0].Tier)
	assert.Equal(t, at("2024-01-01T10:02:00Z"), out[0].RealtimeAt)
}

func TestJoin_ClosestTieKeepsEarlierCandidate(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{JourneyRef: "J", DepartureAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{JourneyRef: "J", LineLabel: "a", ExpectedArrivalAt: at("2024-01-01T10:03:00Z")},
		{JourneyRef: "J", LineLabel: "b", ExpectedArrivalAt: at("2024-01-01T09:57:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 1)
	assert.Same(t, &realtime[0], out[0].Realtime)
}

func TestJoin_CandidatesWithoutInstant(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{JourneyRef: "J", DepartureAt: at("2024-01-01T10:00:00Z")},
	}

	t.Run("skipped when another has an instant", func(t *testing.T) {
		realtime := []arrivals.RealtimeArrival{
			{JourneyRef: "J", LineLabel: "empty"},
			{JourneyRef: "J", LineLabel: "timed", AimedDepartureAt: at("2024-01-01T11:00:00Z")},
		}
		out := Join(planned, realtime)
		require.Len(t, out, 1)
		assert.Same(t, &realtime[1], out[0].Realtime)
	})

	t.Run("first candidate as last resort", func(t *testing.T) {
		realtime := []arrivals.RealtimeArrival{
			{JourneyRef: "J", LineLabel: "first", RecordedAt: at("2024-01-01T09:59:00Z")},
			{JourneyRef: "J", LineLabel: "second"},
		}
		out := Join(planned, realtime)
		require.Len(t, out, 1)
		assert.Equal(t, arrivals.TierJourney, out[0].Tier)
		assert.Same(t, &realtime[0], out[0].Realtime)
		assert.Nil(t, out[0].RealtimeAt)
		assert.Equal(t, at("2024-01-01T09:59:00Z"), out[0].UpdatedAt)
		assert.Equal(t, at("2024-01-01T10:00:00Z"), out[0].DisplayAt())
	})
}

func TestJoin_PlannedInstantPrefersDeparture(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{JourneyRef: "J", ArrivalAt: at("2024-01-01T10:00:00Z"), DepartureAt: at("2024-01-01T10:30:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{JourneyRef: "J", LineLabel: "near-arrival", ExpectedArrivalAt: at("2024-01-01T10:01:00Z")},
		{JourneyRef: "J", LineLabel: "near-departure", ExpectedArrivalAt: at("2024-01-01T10:29:00Z")},
	}
	out := Join(planned, realtime)
	require.Len(t, out, 1)
	assert.Equal(t, at("2024-01-01T10:30:00Z"), out[0].PlannedAt)
	assert.Same(t, &realtime[1], out[0].Realtime)
}

func TestJoin_DelayAndFreshness(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "a", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "b", DepartureAt: at("2024-01-01T10:10:00Z")},
		{ID: "c", DepartureAt: at("2024-01-01T10:20:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{ID: "a", AimedArrivalAt: at("2024-01-01T10:00:00Z"), ExpectedArrivalAt: at("2024-01-01T10:05:00Z"),
			AimedDepartureAt: at("2024-01-01T10:00:00Z"), ExpectedDepartureAt: at("2024-01-01T10:09:00Z"),
			RecordedAt: at("2024-01-01T09:58:00Z")},
		{ID: "b", AimedDepartureAt: at("2024-01-01T10:10:00Z"), ExpectedDepartureAt: at("2024-01-01T10:07:00Z")},
		{ID: "c", ActualArrivalAt: at("2024-01-01T10:21:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 3)

	byID := map[string]arrivals.JoinedArrival{}
	for _, row := range out {
		byID[row.Planned.ID] = row
	}
	assert.Equal(t, intp(5), byID["a"].DelayMinutes, "arrival pair wins over departure pair")
	assert.Equal(t, at("2024-01-01T09:58:00Z"), byID["a"].UpdatedAt)
	assert.Equal(t, intp(-3), byID["b"].DelayMinutes, "departure pair fallback")
	assert.Nil(t, byID["c"].DelayMinutes)
	assert.Equal(t, at("2024-01-01T10:21:00Z"), byID["c"].RealtimeAt)
}

func TestJoin_EmptyRealtimeKeepsAllTimedPlannedRows(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "1", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "2", ArrivalAt: at("2024-01-01T10:05:00Z")},
		{ID: "3"},
		{ID: "4", DepartureAt: at("2024-01-01T09:00:00Z")},
	}
	out := Join(planned, nil)
	require.Len(t, out, 3)
	for _, row := range out {
		assert.Nil(t, row.RealtimeAt)
		assert.Nil(t, row.DelayMinutes)
		assert.Nil(t, row.UpdatedAt)
	}
	assert.Equal(t, "4", out[0].Planned.ID)
}

func TestJoin_OrderingUsesRealtimeThenPlanned(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "early-planned-late-rt", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "mid", DepartureAt: at("2024-01-01T10:10:00Z")},
		{ID: "offset", DepartureAt: at("2024-01-01T12:05:00+02:00")},
	}
	realtime := []arrivals.RealtimeArrival{
		{ID: "early-planned-late-rt", ExpectedArrivalAt: at("2024-01-01T10:20:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 3)
	ids := []string{out[0].Planned.ID, out[1].Planned.ID, out[2].Planned.ID}
	// 12:05+02:00 is 10:05Z and must sort numerically, not lexically
	assert.Equal(t, []string{"offset", "mid", "early-planned-late-rt"}, ids)

	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].DisplayAt().Before(*out[i-1].DisplayAt()))
	}
}

func TestJoin_Idempotent(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "1", LineLabel: "5", JourneyRef: "A", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "2", LineLabel: "5", JourneyRef: "B", DepartureAt: at("2024-01-01T10:00:00Z")},
		{ID: "3", LineLabel: "6", DepartureAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:02:00Z")},
		{JourneyRef: "A", ExpectedArrivalAt: at("2024-01-01T10:01:00Z")},
	}

	first := Join(planned, realtime)
	second := Join(planned, realtime)
	assert.Equal(t, first, second)
	for i := range first {
		assert.Same(t, first[i].Planned, second[i].Planned)
	}
}

func TestJoin_SharedRealtimeByDefault(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{LineLabel: "5", DepartureAt: at("2024-01-01T10:00:00Z")},
		{LineLabel: "5", DepartureAt: at("2024-01-01T10:20:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:03:00Z")},
	}

	out := Join(planned, realtime)
	require.Len(t, out, 2)
	assert.Same(t, out[0].Realtime, out[1].Realtime)
}

func TestJoinWithOptions_ConsumeMatches(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{LineLabel: "5", DepartureAt: at("2024-01-01T10:00:00Z")},
		{LineLabel: "5", DepartureAt: at("2024-01-01T10:20:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:03:00Z")},
		{LineLabel: "5", ExpectedArrivalAt: at("2024-01-01T10:04:00Z")},
	}

	out := JoinWithOptions(planned, realtime, Options{ConsumeMatches: true})
	require.Len(t, out, 2)
	assert.Same(t, &realtime[0], out[0].Realtime)
	assert.Same(t, &realtime[1], out[1].Realtime)
}

func TestJoinWithOptions_IncludeUnmatchedRealtime(t *testing.T) {
	planned := []arrivals.PlannedArrival{
		{ID: "1", LineLabel: "5", DepartureAt: at("2024-01-01T10:00:00Z")},
	}
	realtime := []arrivals.RealtimeArrival{
		{ID: "1", ExpectedArrivalAt: at("2024-01-01T10:01:00Z")},
		{ID: "x", LineLabel: "77", ExpectedArrivalAt: at("2024-01-01T09:55:00Z"), AimedArrivalAt: at("2024-01-01T09:50:00Z")},
		{ID: "y", LineLabel: "78"},
	}

	out := JoinWithOptions(planned, realtime, Options{IncludeUnmatchedRealtime: true})
	require.Len(t, out, 2)
	assert.Equal(t, arrivals.TierRealtimeOnly, out[0].Tier)
	assert.Equal(t, "77", out[0].LineLabel)
	assert.Nil(t, out[0].PlannedAt)
	assert.Equal(t, intp(5), out[0].DelayMinutes)
	assert.Equal(t, arrivals.TierID, out[1].Tier)

	assert.Len(t, Join(planned, realtime), 1)
}
