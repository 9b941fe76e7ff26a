package clock

import (
	"testing"
	"time"
)

func TestAvailabilityCases(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	tests := []struct {
		name      string
		scheduled string
		now       time.Time
		override  bool
		want      TestAvailability
		wantErr   bool
	}{
		{"same day after opening", "Friday, 03 October", time.Date(2025, 10, 3, 10, 30, 0, 0, loc), false, Available, false},
		{"same day exactly at opening", "Friday, 03 October", time.Date(2025, 10, 3, 10, 0, 0, 0, loc), false, Available, false},
		{"same day before opening", "Friday, 03 October", time.Date(2025, 10, 3, 9, 59, 0, 0, loc), false, NotYet, false},
		{"earlier day", "Friday, 03 October", time.Date(2025, 10, 4, 11, 0, 0, 0, loc), false, Passed, false},
		{"later day", "Friday, 10 October", time.Date(2025, 10, 3, 23, 0, 0, 0, loc), false, NotYet, false},
		{"iso date", "2025-10-03", time.Date(2025, 10, 3, 12, 0, 0, 0, loc), false, Available, false},
		{"override", "Friday, 10 October", time.Date(2025, 10, 3, 1, 0, 0, 0, loc), true, Available, false},
		{"garbage", "next friday", time.Date(2025, 10, 3, 12, 0, 0, 0, loc), false, NotYet, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Availability(tt.scheduled, tt.now, tt.override, 10)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Availability() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() {
		order = append(order, "a")
		c.AfterFunc(500*time.Millisecond, func() { order = append(order, "a2") })
	})
	stopped := c.AfterFunc(time.Second, func() { order = append(order, "never") })
	if !stopped.Stop() {
		t.Fatal("Stop() on a pending timer should report true")
	}

	c.Advance(3 * time.Second)

	want := []string{"a", "a2", "b"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
	if got := c.Now(); !got.Equal(time.Date(2025, 1, 1, 0, 0, 3, 0, time.UTC)) {
		t.Errorf("Now() = %v after advance", got)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}
