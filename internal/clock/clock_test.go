package clock

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Fake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	got := c.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !got.Equal(want) || !c.Now().Equal(want) {
		t.Fatalf("Advance() = %v, Now() = %v, want %v", got, c.Now(), want)
	}

	later := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Fatalf("Set() did not move clock: %v", c.Now())
	}
}

func TestRealClockMovesForward(t *testing.T) {
	c := Real()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Fatalf("real clock went backwards: %v then %v", a, b)
	}
}
