package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/market"
)

// Sink receives a value for one series it was routed to.
type Sink func(s candles.Series, v market.Value)

var ErrRunning = errors.New("registry already running")

// Registry maps series to the sources that feed them. A source is
// identified by its Name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	links   map[string]map[string]candles.Series // source name -> series key
	running bool
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		links:   make(map[string]map[string]candles.Series),
	}
}

// Register attaches src to s. Registering the same pair twice is a no-op.
func (r *Registry) Register(s candles.Series, src Source) error {
	if src == nil {
		return fmt.Errorf("register %s: nil source", s)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if cur, ok := r.sources[name]; ok && cur != src {
		return fmt.Errorf("register %s: another source is named %q", s, name)
	}
	if _, ok := r.links[name][s.Key()]; ok {
		return nil
	}

	if reg, ok := src.(SecurityRegistrar); ok && !r.hasInstrument(name, s.Instrument) {
		if err := reg.RegisterSecurity(s.Instrument); err != nil {
			return fmt.Errorf("register %s with %s: %w", s.Instrument, name, err)
		}
	}

	r.sources[name] = src
	if r.links[name] == nil {
		r.links[name] = make(map[string]candles.Series)
	}
	r.links[name][s.Key()] = s
	return nil
}

// Unregister detaches src from s. Unknown pairs are ignored.
func (r *Registry) Unregister(s candles.Series, src Source) error {
	if src == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unlink(src.Name(), s)
}

// UnregisterSeries detaches s from every source.
func (r *Registry) UnregisterSeries(s candles.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, set := range r.links {
		if _, ok := set[s.Key()]; ok {
			errs = append(errs, r.unlink(name, s))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) unlink(name string, s candles.Series) error {
	set, ok := r.links[name]
	if !ok {
		return nil
	}
	if _, ok := set[s.Key()]; !ok {
		return nil
	}
	delete(set, s.Key())

	src := r.sources[name]
	var err error
	if reg, ok := src.(SecurityRegistrar); ok && !r.hasInstrument(name, s.Instrument) {
		if uerr := reg.UnRegisterSecurity(s.Instrument); uerr != nil {
			err = fmt.Errorf("unregister %s with %s: %w", s.Instrument, name, uerr)
		}
	}
	if len(set) == 0 {
		delete(r.links, name)
		delete(r.sources, name)
	}
	return err
}

func (r *Registry) hasInstrument(name, instrument string) bool {
	for _, s := range r.links[name] {
		if s.Instrument == instrument {
			return true
		}
	}
	return false
}

// Sources lists the sources attached to s, ordered by name.
func (r *Registry) Sources(s candles.Series) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Source
	for name, set := range r.links {
		if _, ok := set[s.Key()]; ok {
			out = append(out, r.sources[name])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Series lists the series fed by the named source, ordered by key.
func (r *Registry) Series(name string) []candles.Series {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]candles.Series, 0, len(r.links[name]))
	for _, s := range r.links[name] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// route returns the series of the named source that want values of
// instrument. It reads the live links so detaching takes effect mid-run.
func (r *Registry) route(name, instrument string) []candles.Series {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []candles.Series
	for _, s := range r.links[name] {
		if s.Instrument == instrument {
			out = append(out, s)
		}
	}
	return out
}

// Run starts every registered source once and delivers each value to sink
// for every matching series. It returns when all sources have returned; the
// first source error cancels the others. Cancellation of ctx is not an error.
func (r *Registry) Run(ctx context.Context, sink Sink) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunning
	}
	r.running = true
	srcs := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		srcs = append(srcs, src)
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range srcs {
		name := src.Name()
		g.Go(func() error {
			err := src.Run(gctx, func(v market.Value) {
				for _, s := range r.route(name, v.Instrument) {
					sink(s, v)
				}
			})
			if err != nil {
				return fmt.Errorf("source %s: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
