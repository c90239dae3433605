package candles

import "errors"

var (
	// ErrMalformedValue marks a value missing fields its series needs.
	ErrMalformedValue = errors.New("malformed value")

	// ErrOutOfOrderValue marks a value older than the window it would land in.
	ErrOutOfOrderValue = errors.New("out of order value")

	// ErrInvariantViolation is fatal for the affected series.
	ErrInvariantViolation = errors.New("candle invariant violation")

	ErrUnknownSeries = errors.New("unknown series")
)

func isOutOfOrder(err error) bool {
	return errors.Is(err, ErrOutOfOrderValue)
}
