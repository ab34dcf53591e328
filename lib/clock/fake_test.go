// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowStandsStill(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if !fake.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", fake.Now(), start)
	}

	fake.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !fake.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ch := fake.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		want := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
		if !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeTickerFiresRepeatedly(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		fake.Advance(time.Minute)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i+1)
		}
	}
}

func TestFakeTickerStopsDelivering(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Minute)
	ticker.Stop()

	fake.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}
