package testutil

import (
	"testing"
	"time"

	"github.com/flycast-tech/jobremind/internal/civil"
)

func TestFakeClock_Advance(t *testing.T) {
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	clock.Advance(5 * time.Minute)

	want := fixed.Add(5 * time.Minute)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("after Advance(5m), Now() = %v, want %v", got, want)
	}
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	target := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	clock.Set(target)

	if got := clock.Now(); !got.Equal(target) {
		t.Errorf("after Set, Now() = %v, want %v", got, target)
	}
}

func TestCivilTime(t *testing.T) {
	got := CivilTime(2025, time.March, 10, 9, 2)
	if got.Location() != civil.Location {
		t.Errorf("expected civil location, got %v", got.Location())
	}
	// 09:02 civil is 04:02 UTC.
	if utc := got.UTC(); utc.Hour() != 4 || utc.Minute() != 2 {
		t.Errorf("expected 04:02 UTC, got %v", utc)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestMustParseUUID_Invalid(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParseUUID should panic on invalid UUID")
		}
	}()
	MustParseUUID("not-a-uuid")
}
