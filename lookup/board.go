package lookup

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
)

// DefaultRefreshInterval is the auto-refresh period when none is configured.
const DefaultRefreshInterval = 30 * time.Second

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("board closed")

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is the display state of a board at one moment.
type Snapshot struct {
	Status      Status    `json:"status"`
	Code        string    `json:"code,omitempty"`
	Result      *Result   `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   feed.Kind `json:"errorKind,omitempty"`
	AutoRefresh bool      `json:"autoRefresh"`
}

// Looker runs a single lookup cycle.
type Looker interface {
	Lookup(ctx context.Context, code string) (*Result, error)
}

type BoardOptions struct {
	Interval    time.Duration
	AutoRefresh bool
	Lines       LineFilter
	Logger      *zap.Logger
}

// Board holds the display state of one viewing session. A failed cycle
// keeps the last good result. Refreshes are scheduled only after a cycle
// finishes, so at most one cycle runs at a time.
type Board struct {
	looker   Looker
	interval time.Duration
	lines    LineFilter
	logger   *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   Status
	code     string
	result   *Result
	errMsg   string
	errKind  feed.Kind
	auto     bool
	closed   bool
	gen      uint64
	inflight context.CancelFunc
	timer    *time.Timer
	subs     map[int]chan Snapshot
	nextSub  int
}

func NewBoard(looker Looker, opts BoardOptions) *Board {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Board{
		looker:   looker,
		interval: opts.Interval,
		lines:    opts.Lines,
		logger:   opts.Logger,
		base:     base,
		cancel:   cancel,
		status:   StatusIdle,
		auto:     opts.AutoRefresh,
		subs:     make(map[int]chan Snapshot),
	}
}

// Load runs a manual lookup for code. Any pending refresh and any in-flight
// cycle are cancelled first. The returned error is the cycle's error.
func (b *Board) Load(ctx context.Context, code string) (Snapshot, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	b.code = code
	gen, cctx, cancel := b.beginLocked(ctx)
	b.mu.Unlock()

	stop := context.AfterFunc(b.base, cancel)
	defer stop()
	return b.run(cctx, cancel, gen, code)
}

// beginLocked supersedes the current cycle and timer and marks the board loading.
func (b *Board) beginLocked(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	b.stopTimerLocked()
	if b.inflight != nil {
		b.inflight()
	}
	b.gen++
	ctx, cancel := context.WithCancel(parent)
	b.inflight = cancel
	b.status = StatusLoading
	b.publishLocked()
	return b.gen, ctx, cancel
}

func (b *Board) run(ctx context.Context, cancel context.CancelFunc, gen uint64, code string) (Snapshot, error) {
	defer cancel()
	res, err := b.looker.Lookup(ctx, code)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.closed {
		// superseded by a newer cycle or closed; its state wins
		return b.snapshotLocked(), err
	}
	b.inflight = nil
	if err != nil {
		b.status = StatusError
		b.errMsg = err.Error()
		b.errKind = feed.KindOf(err)
	} else {
		b.status = StatusSuccess
		b.result = res
		b.errMsg = ""
		b.errKind = ""
	}
	b.scheduleLocked()
	b.publishLocked()
	return b.snapshotLocked(), err
}

func (b *Board) scheduleLocked() {
	// no retries for a rejected code
	if !b.auto || b.closed || b.code == "" || b.timer != nil || b.errKind == feed.KindInvalidInput {
		return
	}
	gen := b.gen
	b.timer = time.AfterFunc(b.interval, func() { b.refresh(gen) })
}

func (b *Board) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Board) refresh(gen uint64) {
	b.mu.Lock()
	if b.closed || !b.auto || gen != b.gen || b.status == StatusLoading {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	code := b.code
	next, ctx, cancel := b.beginLocked(b.base)
	b.mu.Unlock()

	b.logger.Debug("auto refresh", zap.String("stop_code", code))
	_, _ = b.run(ctx, cancel, next, code)
}

// SetAutoRefresh enables or disables periodic refresh. Enabling on a board
// with a finished cycle schedules the next refresh.
func (b *Board) SetAutoRefresh(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auto = on
	if !on {
		b.stopTimerLocked()
	} else if b.status == StatusSuccess || b.status == StatusError {
		b.scheduleLocked()
	}
	b.publishLocked()
}

// Snapshot returns the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// View returns the current state, optionally keeping only favorite lines.
func (b *Board) View(favoritesOnly bool) Snapshot {
	snap := b.Snapshot()
	if !favoritesOnly || b.lines == nil || snap.Result == nil {
		return snap
	}
	filtered := *snap.Result
	filtered.Arrivals = FilterLines(filtered.Arrivals, b.lines)
	snap.Result = &filtered
	return snap
}

// Subscribe delivers a snapshot on every state change. Slow subscribers
// miss snapshots rather than block the board.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Close stops auto-refresh, cancels the in-flight cycle and ends all subscriptions.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.stopTimerLocked()
	if b.inflight != nil {
		b.inflight()
		b.inflight = nil
	}
	b.cancel()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{
		Status:      b.status,
		Code:        b.code,
		Result:      b.result,
		Error:       b.errMsg,
		ErrorKind:   b.errKind,
		AutoRefresh: b.auto,
	}
}

func (b *Board) publishLocked() {
	snap := b.snapshotLocked()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
