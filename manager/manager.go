package manager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/market"
	"github.com/rustyeddy/candles/source"
)

var (
	ErrUnknownSeries = candles.ErrUnknownSeries
	ErrSeriesActive  = errors.New("series already active")
	ErrSeriesStopped = errors.New("series is stopped")

	// ErrSeriesFailed is returned for every operation on a series after an
	// invariant violation, until it is unregistered or restarted.
	ErrSeriesFailed = errors.New("series failed")
)

// State is the lifecycle position of a series.
type State int8

const (
	Unregistered State = iota
	Active
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unregistered"
	}
}

// Handler receives candle notifications. It runs synchronously on the
// goroutine processing the value and must not call back into the manager
// for the same series.
type Handler func(candles.Update)

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithBuilders(b candles.Builders) Option {
	return func(m *Manager) { m.builders = b }
}

func WithRegistry(r *source.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// slot is the per-series serialization point. mu is held for the whole
// of builder decision, commit and publish.
type slot struct {
	mu      sync.Mutex
	series  candles.Series
	state   State
	builder candles.Builder
	cause   error
	gone    bool // removed by Unregister; Start must make a new slot

	subMu sync.RWMutex
	subs  []*Subscription
}

// Manager routes market values to candle builders, stores the results in
// a container and publishes every candle change to subscribers.
type Manager struct {
	log      *zap.Logger
	builders candles.Builders
	registry *source.Registry
	ct       *candles.Container

	mu    sync.RWMutex
	slots map[string]*slot
}

func New(opts ...Option) *Manager {
	m := &Manager{
		log:      zap.NewNop(),
		builders: candles.DefaultBuilders(candles.Options{}),
		registry: source.NewRegistry(),
		ct:       candles.NewContainer(),
		slots:    make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) slot(s candles.Series) (*slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sl, ok := m.slots[s.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, s.Key())
	}
	return sl, nil
}

// Start begins aggregating s from scratch. A stopped or failed series
// restarts with empty state but keeps its subscribers.
func (m *Manager) Start(s candles.Series) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b, ok := m.builders.For(s.Kind)
	if !ok {
		return fmt.Errorf("start %s: no builder for kind %s", s.Key(), s.Kind)
	}

	sl := m.lockSlot(s)
	defer sl.mu.Unlock()

	if sl.state == Active {
		return fmt.Errorf("%w: %s", ErrSeriesActive, s.Key())
	}
	m.ct.Reset(s)
	sl.builder = b
	sl.state = Active
	sl.cause = nil

	m.log.Info("series started", zap.String("series", s.Key()))
	return nil
}

// lockSlot returns the slot of s, creating it if needed, with its mutex
// held. A slot torn down by a concurrent Unregister is never returned.
func (m *Manager) lockSlot(s candles.Series) *slot {
	for {
		m.mu.Lock()
		sl, ok := m.slots[s.Key()]
		if !ok {
			sl = &slot{series: s}
			m.slots[s.Key()] = sl
		}
		m.mu.Unlock()

		sl.mu.Lock()
		if !sl.gone {
			return sl
		}
		sl.mu.Unlock()
	}
}

// Stop finishes the open candle of s at its natural boundary, publishes
// it and stops routing values to s. Stopping twice is a no-op.
func (m *Manager) Stop(s candles.Series) error {
	sl, err := m.slot(s)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	switch sl.state {
	case Stopped:
		return nil
	case Failed:
		return sl.failure()
	case Unregistered:
		return fmt.Errorf("%w: %s", ErrUnknownSeries, s.Key())
	}

	u, ok, err := m.ct.Finish(s)
	if err != nil {
		m.fail(sl, err)
		return err
	}
	sl.state = Stopped
	if ok {
		m.publish(sl, []candles.Update{u})
	}
	m.log.Info("series stopped", zap.String("series", s.Key()), zap.Bool("finished_open", ok))
	return nil
}

// Flush finishes the open candle of s if its window has ended by asOf and
// reports whether it did.
func (m *Manager) Flush(s candles.Series, asOf time.Time) (bool, error) {
	sl, err := m.slot(s)
	if err != nil {
		return false, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if err := sl.usable(); err != nil {
		return false, err
	}
	u, ok, err := m.ct.Flush(s, asOf)
	if err != nil {
		m.fail(sl, err)
		return false, err
	}
	if ok {
		m.publish(sl, []candles.Update{u})
	}
	return ok, nil
}

// FlushAll flushes every active series against asOf, e.g. on a clock tick
// or session close.
func (m *Manager) FlushAll(asOf time.Time) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, sl := range m.routes("") {
		ok, err := m.Flush(sl.series, asOf)
		if err != nil && !errors.Is(err, ErrSeriesStopped) && !errors.Is(err, ErrSeriesFailed) {
			errs = append(errs, err)
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// Unregister drops s without finishing its open candle, along with its
// subscribers and source attachments. It waits for any value being
// processed for s; a Start racing with it gets a fresh series.
func (m *Manager) Unregister(s candles.Series) error {
	sl, err := m.slot(s)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.gone {
		return fmt.Errorf("%w: %s", ErrUnknownSeries, s.Key())
	}

	m.mu.Lock()
	delete(m.slots, s.Key())
	m.ct.Unregister(s)
	err = m.registry.UnregisterSeries(s)
	m.mu.Unlock()

	sl.gone = true
	sl.state = Unregistered

	sl.subMu.Lock()
	sl.subs = nil
	sl.subMu.Unlock()

	m.log.Info("series unregistered", zap.String("series", s.Key()))
	return err
}

// State reports where s is in its lifecycle.
func (m *Manager) State(s candles.Series) State {
	sl, err := m.slot(s)
	if err != nil {
		return Unregistered
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.state
}

// Series lists every known series ordered by key.
func (m *Manager) Series() []candles.Series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]candles.Series, 0, len(m.slots))
	for _, sl := range m.slots {
		out = append(out, sl.series)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// routes returns the slots of one instrument, or all of them for "",
// ordered by key. State is checked under the slot lock later.
func (m *Manager) routes(instrument string) []*slot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*slot
	for _, sl := range m.slots {
		if instrument == "" || sl.series.Instrument == instrument {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].series.Key() < out[j].series.Key() })
	return out
}

// Process feeds v to every active series of its instrument. Rejected
// values are counted, not returned; the error reports series that failed
// while processing v.
func (m *Manager) Process(v market.Value) error {
	if v.Instrument == "" {
		m.log.Debug("value without instrument dropped", zap.Stringer("value", v))
		return nil
	}
	var errs []error
	for _, sl := range m.routes(v.Instrument) {
		_, err := m.process(sl, v)
		if err != nil && !errors.Is(err, ErrSeriesStopped) && !errors.Is(err, ErrSeriesFailed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessSeries feeds v to s alone. A rejected value comes back as a
// Rejected result with a nil error.
func (m *Manager) ProcessSeries(s candles.Series, v market.Value) (candles.Result, error) {
	sl, err := m.slot(s)
	if err != nil {
		return candles.Result{}, err
	}
	return m.process(sl, v)
}

func (m *Manager) process(sl *slot, v market.Value) (candles.Result, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	s := sl.series
	if err := sl.usable(); err != nil {
		return candles.Result{}, err
	}

	if err := m.ct.Admit(s, v.Time); err != nil {
		m.ct.Reject(s, err)
		m.log.Debug("value rejected", zap.String("series", s.Key()), zap.Stringer("value", v), zap.Error(err))
		return candles.Result{Action: candles.Rejected, Err: err}, nil
	}

	prior, _ := m.ct.Active(s)
	res := sl.builder.Process(s, prior, v)
	updates, err := m.ct.Commit(s, prior, res)
	if err != nil {
		m.fail(sl, err)
		return res, err
	}
	if res.Action == candles.Rejected {
		m.log.Debug("value rejected", zap.String("series", s.Key()), zap.Stringer("value", v), zap.Error(res.Err))
		return res, nil
	}

	m.publish(sl, updates)
	return res, nil
}

func (sl *slot) usable() error {
	switch sl.state {
	case Active:
		return nil
	case Stopped:
		return fmt.Errorf("%w: %s", ErrSeriesStopped, sl.series.Key())
	case Failed:
		return sl.failure()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSeries, sl.series.Key())
	}
}

func (sl *slot) failure() error {
	return fmt.Errorf("%w: %s: %w", ErrSeriesFailed, sl.series.Key(), sl.cause)
}

// fail parks the series after an invariant violation. Other series keep
// running.
func (m *Manager) fail(sl *slot, err error) {
	sl.state = Failed
	sl.cause = err
	m.log.Error("series failed", zap.String("series", sl.series.Key()), zap.Error(err))
}

func (m *Manager) publish(sl *slot, updates []candles.Update) {
	if len(updates) == 0 {
		return
	}
	sl.subMu.RLock()
	subs := append([]*Subscription(nil), sl.subs...)
	sl.subMu.RUnlock()

	for _, u := range updates {
		if u.Final {
			m.log.Debug("candle finished", zap.String("series", sl.series.Key()), zap.Stringer("candle", u.Candle))
		}
		for _, sub := range subs {
			sub.h(u)
		}
	}
}

// Candles returns the candles of s that opened in [from, to), the open
// candle included. Zero bounds are unbounded.
func (m *Manager) Candles(s candles.Series, from, to time.Time) ([]candles.Candle, error) {
	if _, err := m.slot(s); err != nil {
		return nil, err
	}
	return m.ct.Candles(s, from, to)
}

// Finished is a restartable sequence over the finished candles of s.
func (m *Manager) Finished(s candles.Series) (iter.Seq[candles.Candle], error) {
	if _, err := m.slot(s); err != nil {
		return nil, err
	}
	return m.ct.Finished(s), nil
}

// Active returns a copy of the open candle of s.
func (m *Manager) Active(s candles.Series) (candles.Candle, bool, error) {
	if _, err := m.slot(s); err != nil {
		return candles.Candle{}, false, err
	}
	c, ok := m.ct.Snapshot(s)
	return c, ok, nil
}

func (m *Manager) Stats(s candles.Series) (candles.Stats, error) {
	if _, err := m.slot(s); err != nil {
		return candles.Stats{}, err
	}
	return m.ct.Stats(s)
}

// Attach feeds s from src once Run is called. s must be known.
func (m *Manager) Attach(s candles.Series, src source.Source) error {
	if _, err := m.slot(s); err != nil {
		return err
	}
	return m.registry.Register(s, src)
}

func (m *Manager) Detach(s candles.Series, src source.Source) error {
	return m.registry.Unregister(s, src)
}

// Run drives every attached source until they are exhausted or ctx is
// done. Values for stopped series are dropped; a failed series is logged
// once per value and left alone.
func (m *Manager) Run(ctx context.Context) error {
	return m.registry.Run(ctx, func(s candles.Series, v market.Value) {
		_, err := m.ProcessSeries(s, v)
		switch {
		case err == nil, errors.Is(err, ErrSeriesStopped), errors.Is(err, ErrUnknownSeries):
		default:
			m.log.Warn("value dropped", zap.String("series", s.Key()), zap.Error(err))
		}
	})
}
