package candles

import (
	"fmt"
	"iter"
	"sync"
	"time"
)

// Update is one candle-state notification: an in-progress snapshot or,
// with Final set, a finished candle.
type Update struct {
	Candle Candle
	Final  bool
}

// Stats counts what happened to the values fed to one series.
type Stats struct {
	Accepted   int64
	Malformed  int64
	OutOfOrder int64
	Finished   int
}

type entry struct {
	mu        sync.RWMutex
	series    Series
	finished  []*Candle
	active    *Candle
	watermark time.Time
	seq       int64
	stats     Stats
}

// Container owns every candle of every registered series: the finished
// history in chronological order and at most one open candle.
type Container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewContainer() *Container {
	return &Container{entries: make(map[string]*entry)}
}

// Register creates empty state for s. It reports false when s already
// exists, in which case its state is kept.
func (ct *Container) Register(s Series) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if _, ok := ct.entries[s.Key()]; ok {
		return false
	}
	ct.entries[s.Key()] = &entry{series: s}
	return true
}

// Unregister drops s and everything it holds without finishing anything.
func (ct *Container) Unregister(s Series) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	delete(ct.entries, s.Key())
}

// Reset replaces the state of s with an empty one.
func (ct *Container) Reset(s Series) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.entries[s.Key()] = &entry{series: s}
}

func (ct *Container) Has(s Series) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.entries[s.Key()]
	return ok
}

func (ct *Container) Series() []Series {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	out := make([]Series, 0, len(ct.entries))
	for _, e := range ct.entries {
		out = append(out, e.series)
	}
	return out
}

func (ct *Container) get(s Series) (*entry, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	e, ok := ct.entries[s.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, s.Key())
	}
	return e, nil
}

// Active returns a working copy of the open candle of s for handing to a
// builder. The stored candle only changes when Commit installs the copy,
// so concurrent readers never see a value half applied.
func (ct *Container) Active(s Series) (*Candle, bool) {
	e, err := ct.get(s)
	if err != nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.active == nil {
		return nil, false
	}
	c := *e.active
	return &c, true
}

// Admit rejects values older than the close of the last finished candle.
func (ct *Container) Admit(s Series, t time.Time) error {
	e, err := ct.get(s)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.watermark.IsZero() && t.Before(e.watermark) {
		return fmt.Errorf("%w: %s before last close %s", ErrOutOfOrderValue, t, e.watermark)
	}
	return nil
}

// Commit applies a builder result computed against prior, the working
// copy Active returned before the builder ran. It returns the
// notifications to publish, finished candles first. Any inconsistency
// between the result and the stored state is an ErrInvariantViolation;
// the stored candles are left as they were, whatever the builder did to
// its copy.
func (ct *Container) Commit(s Series, prior *Candle, res Result) ([]Update, error) {
	e, err := ct.get(s)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if res.Action == Rejected {
		e.countReject(res.Err)
		return nil, nil
	}
	if err := e.check(prior, res); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvariantViolation, s.Key(), err)
	}

	updates := make([]Update, 0, len(res.Closed)+1)
	for _, c := range res.Closed {
		updates = append(updates, e.finish(c))
	}

	e.active = res.Candle
	if c := res.Candle; c != nil {
		if c.Seq == 0 {
			e.seq++
			c.Seq = e.seq
		}
		updates = append(updates, Update{Candle: c.Snapshot()})
	}
	e.stats.Accepted++
	return updates, nil
}

func (e *entry) countReject(err error) {
	switch {
	case err == nil:
	case isOutOfOrder(err):
		e.stats.OutOfOrder++
	default:
		e.stats.Malformed++
	}
}

// Reject records a value refused before it reached a builder.
func (ct *Container) Reject(s Series, err error) {
	e, gerr := ct.get(s)
	if gerr != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.countReject(err)
}

func (e *entry) check(prior *Candle, res Result) error {
	if !sameCandle(prior, e.active) {
		return fmt.Errorf("builder ran against a stale open candle")
	}

	switch res.Action {
	case Unchanged:
		if res.Candle == nil || res.Candle != prior || len(res.Closed) > 0 {
			return fmt.Errorf("unchanged result must return the open candle")
		}
	case Started:
		if res.Candle == nil || res.Candle == prior {
			return fmt.Errorf("started result must return a new candle")
		}
	case Completed:
		if res.Candle != nil || len(res.Closed) == 0 {
			return fmt.Errorf("completed result must close a candle and leave none open")
		}
	default:
		return fmt.Errorf("unknown action %s", res.Action)
	}

	if prior != nil && res.Candle != prior {
		found := false
		for _, c := range res.Closed {
			if c == prior {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("open candle #%d replaced without being closed", prior.Seq)
		}
	}

	last := time.Time{}
	if n := len(e.finished); n > 0 {
		last = e.finished[n-1].OpenTime
	}
	for _, c := range res.Closed {
		if c.State != Active {
			return fmt.Errorf("candle #%d closed twice", c.Seq)
		}
		if c.OpenTime.Before(last) {
			return fmt.Errorf("candle opened at %s closes after one opened at %s", c.OpenTime, last)
		}
		if err := c.Valid(); err != nil {
			return fmt.Errorf("candle #%d: %v", c.Seq, err)
		}
		last = c.OpenTime
	}
	if c := res.Candle; c != nil {
		if c.State != Active {
			return fmt.Errorf("open candle is already finished")
		}
		if c.OpenTime.Before(last) {
			return fmt.Errorf("open candle starts at %s before closed one at %s", c.OpenTime, last)
		}
		if err := c.Valid(); err != nil {
			return fmt.Errorf("open candle: %v", err)
		}
	}
	return nil
}

// sameCandle reports whether the working copy w was taken from c.
func sameCandle(w, c *Candle) bool {
	if w == nil || c == nil {
		return w == c
	}
	return w.Seq == c.Seq && w.OpenTime.Equal(c.OpenTime)
}

// finish marks c Finished at its natural boundary and appends it.
func (e *entry) finish(c *Candle) Update {
	if c.Seq == 0 {
		e.seq++
		c.Seq = e.seq
	}
	if b := e.series.boundary(c); b.After(c.CloseTime) {
		c.CloseTime = b
	}
	c.State = Finished
	e.finished = append(e.finished, c)
	e.watermark = c.CloseTime
	e.stats.Finished++
	return Update{Candle: c.Snapshot(), Final: true}
}

// Finish force-closes the open candle of s, if any, at its natural
// boundary. It is used on stop, where the grouping condition may not have
// been met.
func (ct *Container) Finish(s Series) (Update, bool, error) {
	return ct.finishIf(s, func(*entry, *Candle) bool { return true })
}

// Flush closes the open candle of s when its window has ended by asOf:
// the window end for time frames, the last value time for other kinds.
func (ct *Container) Flush(s Series, asOf time.Time) (Update, bool, error) {
	return ct.finishIf(s, func(e *entry, c *Candle) bool {
		return !asOf.Before(e.series.boundary(c))
	})
}

func (ct *Container) finishIf(s Series, ok func(*entry, *Candle) bool) (Update, bool, error) {
	e, err := ct.get(s)
	if err != nil {
		return Update{}, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.active
	if c == nil || !ok(e, c) {
		return Update{}, false, nil
	}
	if c.State != Active {
		return Update{}, false, fmt.Errorf("%w: %s: open candle already finished", ErrInvariantViolation, s.Key())
	}
	e.active = nil
	return e.finish(c), true, nil
}

// Finished yields copies of the finished candles of s, oldest first. The
// sequence can be ranged over any number of times; each pass sees the
// candles finished at the moment it starts.
func (ct *Container) Finished(s Series) iter.Seq[Candle] {
	return func(yield func(Candle) bool) {
		e, err := ct.get(s)
		if err != nil {
			return
		}
		e.mu.RLock()
		list := e.finished[:len(e.finished):len(e.finished)]
		e.mu.RUnlock()

		for _, c := range list {
			if !yield(*c) {
				return
			}
		}
	}
}

// Candles returns the candles of s that opened in [from, to): finished
// ones followed by the open one. A zero from or to leaves that side
// unbounded.
func (ct *Container) Candles(s Series, from, to time.Time) ([]Candle, error) {
	e, err := ct.get(s)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Candle
	for _, c := range e.finished {
		if inRange(c.OpenTime, from, to) {
			out = append(out, *c)
		}
	}
	if c := e.active; c != nil && inRange(c.OpenTime, from, to) {
		out = append(out, *c)
	}
	return out, nil
}

// Snapshot returns a copy of the open candle of s.
func (ct *Container) Snapshot(s Series) (Candle, bool) {
	e, err := ct.get(s)
	if err != nil {
		return Candle{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.active == nil {
		return Candle{}, false
	}
	return *e.active, true
}

func (ct *Container) Watermark(s Series) time.Time {
	e, err := ct.get(s)
	if err != nil {
		return time.Time{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.watermark
}

func (ct *Container) Stats(s Series) (Stats, error) {
	e, err := ct.get(s)
	if err != nil {
		return Stats{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
