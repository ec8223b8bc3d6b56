package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failed")

func TestOpensAfterMaxFailures(t *testing.T) {
	cb := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v, want %v", i, err, errUpstream)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	if err := cb.Call(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(3, time.Minute)

	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return nil })
	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return errUpstream })

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	cb := New(1, 10*time.Millisecond)

	cb.Call(func() error { return errUpstream })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	cb := New(1, 10*time.Millisecond)

	cb.Call(func() error { return errUpstream })
	time.Sleep(20 * time.Millisecond)

	cb.Call(func() error { return errUpstream })
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb := New(1, time.Minute)

	cb.Call(func() error { return errUpstream })
	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("call after reset failed: %v", err)
	}
}
