package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/reconcile"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

const (
	DefaultWindow       = 60 * time.Minute
	DefaultDisplayLimit = 12
)

// Observer receives the outcome of every lookup cycle.
type Observer interface {
	ObserveLookup(outcome string, elapsed time.Duration, joined []arrivals.JoinedArrival)
}

type Options struct {
	Stops    feed.StopFinder
	Planned  feed.PlannedSource
	Realtime feed.RealtimeSource

	Window       time.Duration
	DisplayLimit int
	Join         reconcile.Options

	Logger   *zap.Logger
	Observer Observer
}

// Result is the outcome of one successful cycle.
type Result struct {
	Stop      arrivals.Stop            `json:"stop"`
	Arrivals  []arrivals.JoinedArrival `json:"arrivals"`
	Total     int                      `json:"total"`
	From      time.Time                `json:"from"`
	To        time.Time                `json:"to"`
	FetchedAt time.Time                `json:"fetchedAt"`
	CycleID   string                   `json:"cycleId"`
}

// Service runs lookup cycles. It is safe for concurrent use.
type Service struct {
	stops    feed.StopFinder
	planned  feed.PlannedSource
	realtime feed.RealtimeSource
	window   time.Duration
	limit    int
	join     reconcile.Options
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Stops == nil || opts.Planned == nil || opts.Realtime == nil {
		return nil, errors.New("lookup: stop, planned and realtime sources are required")
	}
	s := &Service{
		stops:    opts.Stops,
		planned:  opts.Planned,
		realtime: opts.Realtime,
		window:   opts.Window,
		limit:    opts.DisplayLimit,
		join:     opts.Join,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      utils.Now,
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.limit <= 0 {
		s.limit = DefaultDisplayLimit
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Lookup runs one cycle for the stop with the given public code. The planned
// and realtime fetches either both succeed or the cycle fails.
func (s *Service) Lookup(ctx context.Context, code string) (res *Result, err error) {
	cycle := uuid.NewString()
	start := time.Now()
	logger := s.logger.With(zap.String("cycle", cycle), zap.String("stop_code", code))
	defer func() {
		s.observe(start, res, err)
		if err != nil {
			logger.Warn("lookup failed", zap.Error(err))
		}
	}()

	code, err = feed.ValidateStopCode(code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := utils.CivilDateAt(now)
	stop, err := s.stops.LookupStop(ctx, code, date)
	if err != nil {
		return nil, err
	}

	from, to := now, now.Add(s.window)
	var (
		planned  []arrivals.PlannedArrival
		realtime []arrivals.RealtimeArrival
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		planned, err = s.planned.ListPlanned(gctx, stop.ID, date, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		realtime, err = s.realtime.ListRealtime(gctx, stop.ID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	joined := reconcile.JoinWithOptions(planned, realtime, s.join)
	total := len(joined)
	if len(joined) > s.limit {
		joined = joined[:s.limit]
	}
	logger.Debug("lookup done",
		zap.String("stop_id", stop.ID),
		zap.Int("planned", len(planned)),
		zap.Int("realtime", len(realtime)),
		zap.Int("joined", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{
		Stop:      stop,
		Arrivals:  joined,
		Total:     total,
		From:      from,
		To:        to,
		FetchedAt: s.now().UTC(),
		CycleID:   cycle,
	}, nil
}

func (s *Service) observe(start time.Time, res *Result, err error) {
	if s.observer == nil {
		return
	}
	if err != nil {
		outcome := string(feed.KindOf(err))
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = "canceled"
		case outcome == "":
			outcome = "error"
		}
		s.observer.ObserveLookup(outcome, time.Since(start), nil)
		return
	}
	s.observer.ObserveLookup("ok", time.Since(start), res.Arrivals)
}

// LineFilter reports whether a line label is a favorite.
type LineFilter interface {
	Has(label string) bool
}

// FilterLines keeps the rows whose line label passes f.
func FilterLines(rows []arrivals.JoinedArrival, f LineFilter) []arrivals.JoinedArrival {
	out := make([]arrivals.JoinedArrival, 0, len(rows))
	for _, r := range rows {
		if f.Has(r.LineLabel) {
			out = append(out, r)
		}
	}
	return out
}
