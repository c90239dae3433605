package source

import (
	"context"

	"github.com/rustyeddy/candles/market"
)

// Source pushes market values until it is exhausted or ctx is done.
// Run must not call emit after it returns.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(market.Value)) error
}

// SecurityRegistrar is implemented by sources that need to know which
// instruments to produce, e.g. a live feed subscribing upstream. The
// registry calls RegisterSecurity when the first series of an instrument
// attaches and UnRegisterSecurity when the last one detaches.
type SecurityRegistrar interface {
	RegisterSecurity(instrument string) error
	UnRegisterSecurity(instrument string) error
}
