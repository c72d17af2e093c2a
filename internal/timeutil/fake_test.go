package timeutil

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// FakeClock: Now and Advance
// ---------------------------------------------------------------------------

func Test_FakeClock_AdvanceMovesNow(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", got)
	}
}

// ---------------------------------------------------------------------------
// FakeClock: timer firing
// ---------------------------------------------------------------------------

func Test_FakeClock_Timers_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		delays    []time.Duration
		advance   time.Duration
		wantFired []int // indices into delays, in firing order
	}{
		{
			name:      "fires at exact deadline",
			delays:    []time.Duration{50 * time.Millisecond},
			advance:   50 * time.Millisecond,
			wantFired: []int{0},
		},
		{
			name:      "does not fire early",
			delays:    []time.Duration{50 * time.Millisecond},
			advance:   49 * time.Millisecond,
			wantFired: nil,
		},
		{
			name:      "fires in deadline order",
			delays:    []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond},
			advance:   time.Second,
			wantFired: []int{1, 2, 0},
		},
		{
			name:      "fires only the due subset",
			delays:    []time.Duration{10 * time.Millisecond, time.Hour},
			advance:   time.Minute,
			wantFired: []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

			var fired []int
			for i, d := range tt.delays {
				i := i
				c.AfterFunc(d, func() { fired = append(fired, i) })
			}

			c.Advance(tt.advance)

			if len(fired) != len(tt.wantFired) {
				t.Fatalf("fired %v, want %v", fired, tt.wantFired)
			}
			for i, want := range tt.wantFired {
				if fired[i] != want {
					t.Errorf("fired %v, want %v", fired, tt.wantFired)
					break
				}
			}
		})
	}
}

func Test_FakeClock_TimerScheduledDuringAdvanceFires(t *testing.T) {
	t.Parallel()
	c := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var chained bool
	c.AfterFunc(10*time.Millisecond, func() {
		c.AfterFunc(10*time.Millisecond, func() { chained = true })
	})

	// Both deadlines fall inside the advanced window, so the timer armed by
	// the first callback fires in the same Advance call.
	c.Advance(time.Second)

	if !chained {
		t.Error("timer scheduled during Advance did not fire")
	}
	if c.PendingTimers() != 0 {
		t.Errorf("PendingTimers() = %d, want 0", c.PendingTimers())
	}
}

// ---------------------------------------------------------------------------
// FakeClock: Stop
// ---------------------------------------------------------------------------

func Test_FakeClock_StopCancelsTimer(t *testing.T) {
	t.Parallel()
	c := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var fired bool
	timer := c.AfterFunc(10*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() on an armed timer returned false")
	}
	c.Advance(time.Second)

	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop() returned true")
	}
}

func Test_FakeClock_StopAfterFireReturnsFalse(t *testing.T) {
	t.Parallel()
	c := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	timer := c.AfterFunc(10*time.Millisecond, func() {})
	c.Advance(time.Second)

	if timer.Stop() {
		t.Error("Stop() after firing returned true")
	}
}

// ---------------------------------------------------------------------------
// Real clock smoke test
// ---------------------------------------------------------------------------

func Test_Real_NowTracksWallClock(t *testing.T) {
	t.Parallel()
	before := time.Now()
	got := Real().Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real().Now() = %v outside [%v, %v]", got, before, after)
	}
}
