package reconcile

import (
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// Options toggles behavior beyond the default join.
type Options struct {
	// IncludeUnmatchedRealtime appends realtime rows no planned row claimed.
	IncludeUnmatchedRealtime bool
	// ConsumeMatches lets a realtime row pair with at most one planned row.
	ConsumeMatches bool
}

// Join reconciles planned and realtime rows with the default options.
func Join(planned []arrivals.PlannedArrival, realtime []arrivals.RealtimeArrival) []arrivals.JoinedArrival {
	return JoinWithOptions(planned, realtime, Options{})
}

// JoinWithOptions reconciles planned and realtime rows. The result is sorted
// ascending by realtime instant, falling back to the planned instant. Rows with
// neither instant are dropped.
func JoinWithOptions(planned []arrivals.PlannedArrival, realtime []arrivals.RealtimeArrival, opts Options) []arrivals.JoinedArrival {
	idx := newIndex(realtime)
	claimed := make([]bool, len(realtime))

	out := make([]arrivals.JoinedArrival, 0, len(planned))
	for i := range planned {
		p := &planned[i]
		ri, tier := idx.match(p, claimed, opts.ConsumeMatches)
		var r *arrivals.RealtimeArrival
		if ri >= 0 {
			r = &realtime[ri]
			claimed[ri] = true
		}
		row := build(p, r, tier)
		if row.DisplayAt() == nil {
			continue
		}
		out = append(out, row)
	}

	if opts.IncludeUnmatchedRealtime {
		for i := range realtime {
			if claimed[i] {
				continue
			}
			row := build(nil, &realtime[i], arrivals.TierRealtimeOnly)
			if row.DisplayAt() == nil {
				continue
			}
			out = append(out, row)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayAt().Before(*out[j].DisplayAt())
	})
	return out
}

// index holds realtime row positions keyed for the three matching tiers.
type index struct {
	rows      []arrivals.RealtimeArrival
	byID      map[string]int
	byJourney map[string][]int
	byLine    map[string][]int
}

func newIndex(rows []arrivals.RealtimeArrival) *index {
	idx := &index{
		rows:      rows,
		byID:      make(map[string]int),
		byJourney: make(map[string][]int),
		byLine:    make(map[string][]int),
	}
	for i, r := range rows {
		if r.ID != "" {
			if _, seen := idx.byID[r.ID]; !seen {
				idx.byID[r.ID] = i
			}
		}
		if r.JourneyRef != "" {
			idx.byJourney[r.JourneyRef] = append(idx.byJourney[r.JourneyRef], i)
		}
		if r.LineLabel != "" {
			idx.byLine[r.LineLabel] = append(idx.byLine[r.LineLabel], i)
		}
	}
	return idx
}

// match returns the realtime position paired with p, or -1 with TierNone.
func (idx *index) match(p *arrivals.PlannedArrival, claimed []bool, consume bool) (int, arrivals.MatchTier) {
	if p.ID != "" {
		if i, ok := idx.byID[p.ID]; ok && !(consume && claimed[i]) {
			return i, arrivals.TierID
		}
	}
	if p.JourneyRef != "" {
		if i := idx.closest(idx.byJourney[p.JourneyRef], p.Instant(), claimed, consume); i >= 0 {
			return i, arrivals.TierJourney
		}
	}
	if p.LineLabel != "" {
		if i := idx.closest(idx.byLine[p.LineLabel], p.Instant(), claimed, consume); i >= 0 {
			return i, arrivals.TierLine
		}
	}
	return -1, arrivals.TierNone
}

// closest picks the candidate whose representative instant is nearest target.
// Candidates without an instant are skipped; ties keep the earlier candidate.
// When no candidate has an instant the first one is returned.
func (idx *index) closest(candidates []int, target *time.Time, claimed []bool, consume bool) int {
	first, best := -1, -1
	var bestDiff time.Duration
	for _, i := range candidates {
		if consume && claimed[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		at := idx.rows[i].Representative()
		if at == nil {
			continue
		}
		if target == nil {
			// nothing to compare against; first usable candidate wins
			if best < 0 {
				best = i
			}
			continue
		}
		diff := at.Sub(*target)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return first
	}
	return best
}

func build(p *arrivals.PlannedArrival, r *arrivals.RealtimeArrival, tier arrivals.MatchTier) arrivals.JoinedArrival {
	row := arrivals.JoinedArrival{Tier: tier, Planned: p, Realtime: r}
	if p != nil {
		row.LineLabel = p.LineLabel
		row.RouteLong = p.RouteLong
		row.PlannedAt = p.Instant()
	}
	if r != nil {
		if row.LineLabel == "" {
			row.LineLabel = r.LineLabel
		}
		row.RealtimeAt = r.Representative()
		row.UpdatedAt = r.RecordedAt
		row.DelayMinutes = delay(r)
	}
	return row
}

// delay prefers the arrival pair and falls back to the departure pair.
func delay(r *arrivals.RealtimeArrival) *int {
	if d, ok := utils.DelayMinutes(r.ExpectedArrivalAt, r.AimedArrivalAt); ok {
		return &d
	}
	if d, ok := utils.DelayMinutes(r.ExpectedDepartureAt, r.AimedDepartureAt); ok {
		return &d
	}
	return nil
}
