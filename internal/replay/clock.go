package replay

import "time"

// Ticker delivers autoplay ticks
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Clock creates tickers; tests substitute a manual one
type Clock interface {
	Ticker(d time.Duration) Ticker
}

// realClock implements Clock with the time package
type realClock struct{}

func (realClock) Ticker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
