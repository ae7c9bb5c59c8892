package embeddings

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker should stay closed below the threshold: %v", err)
	}
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %s, want closed", got)
	}

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow = %v, want ErrCircuitOpen", err)
	}
	if got := b.State(); got != BreakerOpen {
		t.Errorf("state = %s, want open", got)
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	current := time.Unix(1000, 0)
	b := newBreaker(1, 30*time.Second)
	b.now = func() time.Time { return current }

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker should be open right after tripping")
	}

	current = current.Add(31 * time.Second)
	if got := b.State(); got != BreakerHalfOpen {
		t.Errorf("state = %s, want half_open after cooldown", got)
	}
	if err := b.Allow(); err != nil {
		t.Errorf("half-open breaker should allow a trial call: %v", err)
	}
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	current := time.Unix(1000, 0)
	b := newBreaker(1, 30*time.Second)
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(31 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("first half-open call should be admitted: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("second caller must fail fast while the probe is in flight")
	}

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("a failed probe must reopen the breaker")
	}

	current = current.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("the next cooldown expiry should admit a fresh probe: %v", err)
	}
	b.RecordSuccess()
	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("closed breaker must allow calls: %v", err)
		}
	}
}

func TestBreakerSuccessCloses(t *testing.T) {
	current := time.Unix(1000, 0)
	b := newBreaker(1, 30*time.Second)
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(time.Minute)
	b.RecordSuccess()

	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %s, want closed after a success", got)
	}
	if err := b.Allow(); err != nil {
		t.Errorf("closed breaker must allow calls: %v", err)
	}
}
