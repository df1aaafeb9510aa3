package arrivals

import (
	"time"
)

// Stop is a physical boarding location as returned by the stop lookup.
type Stop struct {
	ID   string   `json:"id"`
	Code string   `json:"code"`
	Name string   `json:"name,omitempty"`
	City string   `json:"city,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// PlannedArrival is one scheduled call of a ride at a stop.
type PlannedArrival struct {
	ID           string     `json:"id,omitempty"`
	ArrivalAt    *time.Time `json:"arrivalAt,omitempty"`
	DepartureAt  *time.Time `json:"departureAt,omitempty"`
	LineLabel    string     `json:"lineLabel"`
	RouteLong    string     `json:"routeLong,omitempty"`
	JourneyRef   string     `json:"journeyRef,omitempty"`
	StopSequence *int       `json:"stopSequence,omitempty"`
}

// Instant is the planned representative instant: departure when present, else arrival.
func (p PlannedArrival) Instant() *time.Time {
	if p.DepartureAt != nil {
		return p.DepartureAt
	}
	return p.ArrivalAt
}

// RealtimeArrival is one observed or predicted call reported by the realtime feed.
// ID, when set, is the identifier of the planned row this update refers to.
type RealtimeArrival struct {
	ID                  string     `json:"id,omitempty"`
	JourneyRef          string     `json:"journeyRef,omitempty"`
	AimedArrivalAt      *time.Time `json:"aimedArrivalAt,omitempty"`
	ExpectedArrivalAt   *time.Time `json:"expectedArrivalAt,omitempty"`
	ActualArrivalAt     *time.Time `json:"actualArrivalAt,omitempty"`
	AimedDepartureAt    *time.Time `json:"aimedDepartureAt,omitempty"`
	ExpectedDepartureAt *time.Time `json:"expectedDepartureAt,omitempty"`
	ActualDepartureAt   *time.Time `json:"actualDepartureAt,omitempty"`
	LineLabel           string     `json:"lineLabel"`
	RecordedAt          *time.Time `json:"recordedAt,omitempty"`
}

// Representative returns the first present instant in the order actual, expected,
// aimed arrival, then actual, expected, aimed departure. Nil when none is present.
func (r RealtimeArrival) Representative() *time.Time {
	for _, t := range []*time.Time{
		r.ActualArrivalAt, r.ExpectedArrivalAt, r.AimedArrivalAt,
		r.ActualDepartureAt, r.ExpectedDepartureAt, r.AimedDepartureAt,
	} {
		if t != nil {
			return t
		}
	}
	return nil
}

// HasInstant reports whether any of the six timestamps is present.
func (r RealtimeArrival) HasInstant() bool { return r.Representative() != nil }

// MatchTier records which matching rule paired a planned row with a realtime row.
type MatchTier string

const (
	TierNone         MatchTier = "none"
	TierID           MatchTier = "id"
	TierJourney      MatchTier = "journey"
	TierLine         MatchTier = "line"
	TierRealtimeOnly MatchTier = "realtime-only"
)

// JoinedArrival is one reconciled output row.
type JoinedArrival struct {
	LineLabel    string           `json:"lineLabel"`
	RouteLong    string           `json:"routeLong,omitempty"`
	PlannedAt    *time.Time       `json:"plannedAt,omitempty"`
	RealtimeAt   *time.Time       `json:"realtimeAt,omitempty"`
	DelayMinutes *int             `json:"delayMinutes,omitempty"`
	UpdatedAt    *time.Time       `json:"updatedAt,omitempty"`
	Tier         MatchTier        `json:"tier"`
	Planned      *PlannedArrival  `json:"-"`
	Realtime     *RealtimeArrival `json:"-"`
}

// DisplayAt is the instant used for ordering and display: realtime, else planned.
func (j JoinedArrival) DisplayAt() *time.Time {
	if j.RealtimeAt != nil {
		return j.RealtimeAt
	}
	return j.PlannedAt
}
