package ferr

import (
	"errors"
	"testing"
)

func TestWrapPreservesUnderlying(t *testing.T) {
	base := errors.New("dial tcp: connection refused")
	err := Wrap(Connectivity, base)

	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected errors.Is to match ErrConnectivity")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to match wrapped base error")
	}
}

func TestKindOf(t *testing.T) {
	err := New(NotFound, "issue 100 not found").WithBinding("github:acme/widgets")

	kind, ok := KindOf(err)
	if !ok || kind != NotFound {
		t.Fatalf("KindOf = %v, %v; want NotFound, true", kind, ok)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(Connectivity, "timeout"), true},
		{New(RateLimit, "budget exhausted"), true},
		{New(StoreBusy, "database is locked"), true},
		{New(Authentication, "bad token"), false},
		{New(PayloadRejected, "label does not exist"), false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
