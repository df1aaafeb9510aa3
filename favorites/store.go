package favorites

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stop is a favorited stop.
type Stop struct {
	ID      string    `json:"id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}

// Scope names the collection a change applies to.
type Scope string

const (
	ScopeStops Scope = "stops"
	ScopeLines Scope = "lines"
)

// Change announces that a collection was modified. Origin is the instance
// ID of the process that made the change.
type Change struct {
	Scope  Scope  `json:"scope"`
	Origin string `json:"origin"`
}

// Store is the favorite stops capability.
type Store interface {
	List() []Stop
	Get(id string) (Stop, bool)
	Add(s Stop) Stop
	Remove(id string) bool
	Subscribe() (<-chan Change, func())
}

// LineSet is the favorite line labels capability.
type LineSet interface {
	Lines() []string
	Has(label string) bool
	Toggle(label string) bool
	Subscribe() (<-chan Change, func())
}

// Persister stores favorites durably.
type Persister interface {
	LoadStops(ctx context.Context) ([]Stop, error)
	SaveStop(ctx context.Context, s Stop) error
	DeleteStop(ctx context.Context, id string) error
	LoadLines(ctx context.Context) ([]string, error)
	SetLine(ctx context.Context, label string, on bool) error
}

// Notifier tells other processes about a change.
type Notifier interface {
	Publish(c Change) error
}

type Options struct {
	Persister Persister
	Notifier  Notifier
	Logger    *zap.Logger
	// InstanceID identifies this process in change events. Empty generates one.
	InstanceID string
	// Timeout bounds each persistence call.
	Timeout time.Duration
}

// Manager is the single owner of favorites state. It implements Store and LineSet.
type Manager struct {
	// writeMu orders state updates with their persistence.
	writeMu sync.Mutex

	mu    sync.RWMutex
	stops map[string]Stop
	lines map[string]struct{}

	subMu sync.Mutex
	subs  map[int]chan Change
	next  int

	persister Persister
	notifier  Notifier
	logger    *zap.Logger
	instance  string
	timeout   time.Duration
	now       func() time.Time
}

var (
	_ Store   = (*Manager)(nil)
	_ LineSet = (*Manager)(nil)
)

// NewManager creates a manager and loads any persisted state.
func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	m := &Manager{
		stops:     make(map[string]Stop),
		lines:     make(map[string]struct{}),
		subs:      make(map[int]chan Change),
		persister: opts.Persister,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		instance:  opts.InstanceID,
		timeout:   opts.Timeout,
		now:       time.Now,
	}
	m.Reload(ctx)
	return m
}

// InstanceID returns the origin stamped on changes made by this manager.
func (m *Manager) InstanceID() string { return m.instance }

// Reload replaces in-memory state with the persisted state. Load failures
// keep the current state.
func (m *Manager) Reload(ctx context.Context) {
	if m.persister == nil {
		return
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	stops, err := m.persister.LoadStops(ctx)
	if err != nil {
		m.logger.Warn("failed to load favorite stops", zap.Error(err))
	} else {
		m.mu.Lock()
		m.stops = make(map[string]Stop, len(stops))
		for _, s := range stops {
			m.stops[s.ID] = s
		}
		m.mu.Unlock()
		m.broadcast(Change{Scope: ScopeStops, Origin: m.instance}, false)
	}

	lines, err := m.persister.LoadLines(ctx)
	if err != nil {
		m.logger.Warn("failed to load favorite lines", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.lines = make(map[string]struct{}, len(lines))
	for _, l := range lines {
		m.lines[l] = struct{}{}
	}
	m.mu.Unlock()
	m.broadcast(Change{Scope: ScopeLines, Origin: m.instance}, false)
}

// List returns favorite stops, oldest first.
func (m *Manager) List() []Stop {
	m.mu.RLock()
	out := make([]Stop, 0, len(m.stops))
	for _, s := range m.stops {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) Get(id string) (Stop, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stops[id]
	return s, ok
}

// ContainsCode reports whether a favorite stop is keyed by, or carries, the
// public stop code.
func ContainsCode(s Store, code string) bool {
	if code == "" {
		return false
	}
	if _, ok := s.Get(code); ok {
		return true
	}
	for _, st := range s.List() {
		if st.Code == code {
			return true
		}
	}
	return false
}

// Add inserts or replaces a stop. An existing entry keeps its AddedAt.
func (m *Manager) Add(s Stop) Stop {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if prev, ok := m.stops[s.ID]; ok && s.AddedAt.IsZero() {
		s.AddedAt = prev.AddedAt
	}
	if s.AddedAt.IsZero() {
		s.AddedAt = m.now().UTC()
	}
	m.stops[s.ID] = s
	m.mu.Unlock()

	m.persist("save favorite stop", func(ctx context.Context) error { return m.persister.SaveStop(ctx, s) })
	m.broadcast(Change{Scope: ScopeStops, Origin: m.instance}, true)
	return s
}

// Remove deletes a stop and reports whether it was present.
func (m *Manager) Remove(id string) bool {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	_, ok := m.stops[id]
	delete(m.stops, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.persist("delete favorite stop", func(ctx context.Context) error { return m.persister.DeleteStop(ctx, id) })
	m.broadcast(Change{Scope: ScopeStops, Origin: m.instance}, true)
	return true
}

// Lines returns favorite line labels in lexical order.
func (m *Manager) Lines() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.lines))
	for l := range m.lines {
		out = append(out, l)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (m *Manager) Has(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lines[strings.TrimSpace(label)]
	return ok
}

// Toggle flips a line label and returns whether it is now a favorite.
// Blank labels are ignored.
func (m *Manager) Toggle(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	_, on := m.lines[label]
	on = !on
	if on {
		m.lines[label] = struct{}{}
	} else {
		delete(m.lines, label)
	}
	m.mu.Unlock()

	m.persist("toggle favorite line", func(ctx context.Context) error { return m.persister.SetLine(ctx, label, on) })
	m.broadcast(Change{Scope: ScopeLines, Origin: m.instance}, true)
	return on
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. Slow subscribers miss events rather than block writers.
func (m *Manager) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 8)
	m.subMu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) broadcast(c Change, remote bool) {
	m.subMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
	m.subMu.Unlock()

	if remote && m.notifier != nil {
		if err := m.notifier.Publish(c); err != nil {
			m.logger.Warn("failed to publish favorites change", zap.String("scope", string(c.Scope)), zap.Error(err))
		}
	}
}

func (m *Manager) persist(what string, fn func(ctx context.Context) error) {
	if m.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		m.logger.Warn("failed to "+what, zap.Error(err))
	}
}
