package scheduler

import "time"

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker with the given period.
type TickerFactory func(period time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(period time.Duration) Ticker {
	return realTicker{t: time.NewTicker(period)}
}
