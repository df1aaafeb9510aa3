package formatter

import (
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/lookup"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// ArrivalView is one display row.
type ArrivalView struct {
	Line         string             `json:"line"`
	Route        string             `json:"route,omitempty"`
	Clock        string             `json:"clock"`
	ETA          string             `json:"eta"`
	ETAMinutes   int                `json:"etaMinutes"`
	DelayMinutes *int               `json:"delayMinutes,omitempty"`
	DelayStatus  utils.DelayStatus  `json:"delayStatus"`
	DelayLabel   string             `json:"delayLabel,omitempty"`
	Realtime     bool               `json:"realtime"`
	Tier         arrivals.MatchTier `json:"tier"`
	PlannedAt    *time.Time         `json:"plannedAt,omitempty"`
	RealtimeAt   *time.Time         `json:"realtimeAt,omitempty"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty"`
}

// BoardView is the display payload for one stop.
type BoardView struct {
	Stop       arrivals.Stop `json:"stop"`
	Arrivals   []ArrivalView `json:"arrivals"`
	Total      int           `json:"total"`
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	FetchedAt  time.Time     `json:"fetchedAt"`
	IsFavorite bool          `json:"isFavorite"`
}

// BuildArrival renders one joined row relative to now. Rows without a
// display instant never leave the reconciliation step.
func BuildArrival(j arrivals.JoinedArrival, now time.Time) ArrivalView {
	at := j.DisplayAt()
	v := ArrivalView{
		Line:         j.LineLabel,
		Route:        j.RouteLong,
		DelayMinutes: j.DelayMinutes,
		Realtime:     j.RealtimeAt != nil,
		Tier:         j.Tier,
		PlannedAt:    j.PlannedAt,
		RealtimeAt:   j.RealtimeAt,
		UpdatedAt:    j.UpdatedAt,
	}
	v.DelayStatus, v.DelayLabel = utils.ClassifyDelay(j.DelayMinutes)
	if at == nil {
		v.ETA = utils.HumanizeDuration(0)
		return v
	}
	v.Clock = utils.FormatClockInZone(*at)
	v.ETAMinutes = utils.MinutesBetween(*at, now)
	v.ETA = utils.HumanizeDuration(v.ETAMinutes)
	return v
}

// BuildArrivals renders rows in order.
func BuildArrivals(rows []arrivals.JoinedArrival, now time.Time) []ArrivalView {
	out := make([]ArrivalView, 0, len(rows))
	for _, j := range rows {
		out = append(out, BuildArrival(j, now))
	}
	return out
}

// BuildBoard renders a lookup result. rows overrides res.Arrivals when a
// filtered subset is shown.
func BuildBoard(res *lookup.Result, rows []arrivals.JoinedArrival, now time.Time, isFavorite bool) BoardView {
	if rows == nil {
		rows = res.Arrivals
	}
	return BoardView{
		Stop:       res.Stop,
		Arrivals:   BuildArrivals(rows, now),
		Total:      res.Total,
		From:       res.From,
		To:         res.To,
		FetchedAt:  res.FetchedAt,
		IsFavorite: isFavorite,
	}
}
