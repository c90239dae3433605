package manager

import (
	"sync"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/pkg/id"
)

// Subscription is a handler attached to one series.
type Subscription struct {
	ID     string
	Series candles.Series

	h    Handler
	sl   *slot
	once sync.Once
}

// Subscribe attaches h to s. h sees every update of s from now on, in
// processing order, including the finished candle emitted by Stop.
func (m *Manager) Subscribe(s candles.Series, h Handler) (*Subscription, error) {
	sl, err := m.slot(s)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{ID: id.New(), Series: s, h: h, sl: sl}

	sl.subMu.Lock()
	sl.subs = append(sl.subs, sub)
	sl.subMu.Unlock()
	return sub, nil
}

// Unsubscribe detaches the handler. Calling it more than once, or from
// inside the handler, is fine; an update already being delivered may
// still arrive.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sl := sub.sl
		sl.subMu.Lock()
		defer sl.subMu.Unlock()
		for i, other := range sl.subs {
			if other == sub {
				sl.subs = append(sl.subs[:i:i], sl.subs[i+1:]...)
				return
			}
		}
	})
}

// Subscribers counts the handlers attached to s.
func (m *Manager) Subscribers(s candles.Series) int {
	sl, err := m.slot(s)
	if err != nil {
		return 0
	}
	sl.subMu.RLock()
	defer sl.subMu.RUnlock()
	return len(sl.subs)
}
