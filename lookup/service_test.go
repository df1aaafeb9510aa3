package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
)

var fixedNow = time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

type fakeSources struct {
	mu          sync.Mutex
	stopErr     error
	planned     []arrivals.PlannedArrival
	plannedErr  error
	realtime    []arrivals.RealtimeArrival
	realtimeErr error
	// blockPlanned makes ListPlanned wait for cancellation.
	blockPlanned bool

	gotDate          string
	gotFrom, gotTo   time.Time
	plannedCancelled bool
	stopLookups      int
}

func (f *fakeSources) LookupStop(_ context.Context, code, date string) (arrivals.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLookups++
	f.gotDate = date
	if f.stopErr != nil {
		return arrivals.Stop{}, f.stopErr
	}
	return arrivals.Stop{ID: "S" + code, Code: code, Name: "Central"}, nil
}

func (f *fakeSources) ListPlanned(ctx context.Context, _, _ string, from, to time.Time) ([]arrivals.PlannedArrival, error) {
	f.mu.Lock()
	f.gotFrom, f.gotTo = from, to
	block := f.blockPlanned
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		f.mu.Lock()
		f.plannedCancelled = true
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	return f.planned, f.plannedErr
}

func (f *fakeSources) ListRealtime(context.Context, string, time.Time, time.Time) ([]arrivals.RealtimeArrival, error) {
	return f.realtime, f.realtimeErr
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveLookup(outcome string, _ time.Duration, _ []arrivals.JoinedArrival) {
	o.outcomes = append(o.outcomes, outcome)
}

func at(min int) *time.Time {
	t := fixedNow.Add(time.Duration(min) * time.Minute)
	return &t
}

func newTestService(t *testing.T, f *fakeSources, obs Observer) *Service {
	t.Helper()
	s, err := NewService(Options{Stops: f, Planned: f, Realtime: f, Logger: zaptest.NewLogger(t), Observer: obs})
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNewService_RequiresSources(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestService_Lookup(t *testing.T) {
	f := &fakeSources{
		planned: []arrivals.PlannedArrival{
			{ID: "T1:3", DepartureAt: at(10), LineLabel: "5", JourneyRef: "T1"},
			{ID: "T2:3", DepartureAt: at(2), LineLabel: "18", JourneyRef: "T2"},
		},
		realtime: []arrivals.RealtimeArrival{
			{ID: "T1:3", ExpectedArrivalAt: at(13), AimedArrivalAt: at(10), LineLabel: "5"},
		},
	}
	obs := &recordingObserver{}
	s := newTestService(t, f, obs)

	res, err := s.Lookup(context.Background(), " 12345 ")
	require.NoError(t, err)

	assert.Equal(t, "S12345", res.Stop.ID)
	assert.Equal(t, "2024-03-11", f.gotDate)
	assert.Equal(t, fixedNow, f.gotFrom)
	assert.Equal(t, fixedNow.Add(DefaultWindow), f.gotTo)
	assert.Equal(t, fixedNow, res.From)
	assert.NotEmpty(t, res.CycleID)

	require.Len(t, res.Arrivals, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "18", res.Arrivals[0].LineLabel)
	assert.Equal(t, arrivals.TierNone, res.Arrivals[0].Tier)
	assert.Equal(t, "5", res.Arrivals[1].LineLabel)
	assert.Equal(t, arrivals.TierID, res.Arrivals[1].Tier)
	require.NotNil(t, res.Arrivals[1].DelayMinutes)
	assert.Equal(t, 3, *res.Arrivals[1].DelayMinutes)

	assert.Equal(t, []string{"ok"}, obs.outcomes)
}

func TestService_TruncatesToDisplayLimit(t *testing.T) {
	f := &fakeSources{}
	for i := 0; i < 20; i++ {
		f.planned = append(f.planned, arrivals.PlannedArrival{ID: fmt.Sprintf("T%d:1", i), DepartureAt: at(i), LineLabel: "1"})
	}
	s := newTestService(t, f, nil)

	res, err := s.Lookup(context.Background(), "12345")
	require.NoError(t, err)
	assert.Len(t, res.Arrivals, DefaultDisplayLimit)
	assert.Equal(t, 20, res.Total)
	assert.Equal(t, at(0), res.Arrivals[0].PlannedAt)
}

func TestService_InvalidCodeSkipsUpstream(t *testing.T) {
	f := &fakeSources{}
	obs := &recordingObserver{}
	s := newTestService(t, f, obs)

	_, err := s.Lookup(context.Background(), "12")
	assert.True(t, errors.Is(err, feed.ErrInvalidInput))
	assert.Zero(t, f.stopLookups)
	assert.Equal(t, []string{"invalid_input"}, obs.outcomes)
}

func TestService_StopNotFound(t *testing.T) {
	f := &fakeSources{stopErr: feed.NewError(feed.KindNotFound, "lookup stop", errors.New("none"))}
	s := newTestService(t, f, nil)

	_, err := s.Lookup(context.Background(), "99999")
	assert.True(t, errors.Is(err, feed.ErrNotFound))
}

func TestService_AllOrNothing(t *testing.T) {
	f := &fakeSources{
		blockPlanned: true,
		realtimeErr:  feed.NewError(feed.KindTransport, "list realtime", errors.New("boom")),
	}
	obs := &recordingObserver{}
	s := newTestService(t, f, obs)

	res, err := s.Lookup(context.Background(), "12345")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, feed.ErrTransport))

	f.mu.Lock()
	assert.True(t, f.plannedCancelled, "planned fetch should be cancelled when realtime fails")
	f.mu.Unlock()
	assert.Equal(t, []string{"transport"}, obs.outcomes)
}

type labels map[string]bool

func (l labels) Has(label string) bool { return l[label] }

func TestFilterLines(t *testing.T) {
	rows := []arrivals.JoinedArrival{{LineLabel: "1"}, {LineLabel: "2"}, {LineLabel: "1"}}
	got := FilterLines(rows, labels{"1": true})
	assert.Len(t, got, 2)
	assert.Empty(t, FilterLines(rows, labels{}))
}
