package forge

import (
	"context"
	"testing"
	"time"
)

func TestBudgetExhausted(t *testing.T) {
	future := Budget{Remaining: 0, ResetAt: time.Now().Add(time.Minute)}
	if !future.Exhausted() {
		t.Fatalf("expected exhausted budget with future reset")
	}

	past := Budget{Remaining: 0, ResetAt: time.Now().Add(-time.Minute)}
	if past.Exhausted() {
		t.Fatalf("expected budget past its reset to not be exhausted")
	}

	plenty := Budget{Remaining: 100, ResetAt: time.Now().Add(time.Hour)}
	if plenty.Exhausted() {
		t.Fatalf("expected budget with remaining requests to not be exhausted")
	}
}

func TestLimiterWaitRespectsContext(t *testing.T) {
	l := NewLimiter(1)
	l.Observe(Budget{Remaining: 0, ResetAt: time.Now().Add(time.Hour)})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatalf("expected Wait to fail once the limiter is paced past the deadline")
	}
}
