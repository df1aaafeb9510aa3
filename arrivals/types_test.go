package arrivals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPlannedInstant(t *testing.T) {
	arr := at("2024-01-01T10:00:00Z")
	dep := at("2024-01-01T10:01:00Z")

	assert.Equal(t, dep, PlannedArrival{ArrivalAt: arr, DepartureAt: dep}.Instant())
	assert.Equal(t, arr, PlannedArrival{ArrivalAt: arr}.Instant())
	assert.Nil(t, PlannedArrival{}.Instant())
}

func TestRealtimeRepresentative(t *testing.T) {
	aimedArr := at("2024-01-01T10:00:00Z")
	expArr := at("2024-01-01T10:02:00Z")
	actArr := at("2024-01-01T10:03:00Z")
	aimedDep := at("2024-01-01T10:04:00Z")
	expDep := at("2024-01-01T10:05:00Z")
	actDep := at("2024-01-01T10:06:00Z")

	tests := []struct {
		name string
		row  RealtimeArrival
		want *time.Time
	}{
		{"actual arrival first", RealtimeArrival{ActualArrivalAt: actArr, ExpectedArrivalAt: expArr, AimedArrivalAt: aimedArr, ActualDepartureAt: actDep}, actArr},
		{"expected arrival before aimed", RealtimeArrival{ExpectedArrivalAt: expArr, AimedArrivalAt: aimedArr}, expArr},
		{"arrival before departure", RealtimeArrival{AimedArrivalAt: aimedArr, ActualDepartureAt: actDep}, aimedArr},
		{"departure fallback", RealtimeArrival{ExpectedDepartureAt: expDep, AimedDepartureAt: aimedDep}, expDep},
		{"aimed departure last", RealtimeArrival{AimedDepartureAt: aimedDep}, aimedDep},
		{"none", RealtimeArrival{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.Representative())
			assert.Equal(t, tt.want != nil, tt.row.HasInstant())
		})
	}
}

func TestDisplayAt(t *testing.T) {
	p := at("2024-01-01T10:00:00Z")
	r := at("2024-01-01T10:05:00Z")
	assert.Equal(t, r, JoinedArrival{PlannedAt: p, RealtimeAt: r}.DisplayAt())
	assert.Equal(t, p, JoinedArrival{PlannedAt: p}.DisplayAt())
}
