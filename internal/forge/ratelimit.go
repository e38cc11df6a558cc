package forge

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps x/time/rate with the ability to be retargeted from
// response metadata: each adapter call reports the remaining budget
// and reset time it observed, and the limiter reshapes its token rate
// so the next request is paced to land within that window rather than
// bursting through it (SPEC_FULL.md §4.2 "Rate limiting").
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter starts a limiter permitting burst requests immediately
// with no observed budget yet; the first response narrows it.
func NewLimiter(burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Inf, burst)}
}

// Wait blocks until a request may proceed, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Observe updates the limiter from a budget learned off a response.
// When remaining has hit zero, the limiter is set to release its next
// token only at reset, so Wait naturally defers rather than erroring.
func (l *Limiter) Observe(b Budget) {
	if b.Remaining <= 0 {
		until := time.Until(b.ResetAt)
		if until < 0 {
			until = 0
		}
		l.lim.SetLimit(0)
		time.AfterFunc(until, func() { l.lim.SetLimit(rate.Inf) })
		return
	}

	window := time.Until(b.ResetAt)
	if window <= 0 {
		l.lim.SetLimit(rate.Inf)
		return
	}
	l.lim.SetLimit(rate.Limit(float64(b.Remaining) / window.Seconds()))
}
