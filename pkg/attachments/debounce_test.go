package attachments

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)
	defer d.stopAndWait(time.Second)

	var fired atomic.Int32
	done := make(chan struct{}, 1)
	for i := 0; i < 5; i++ {
		d.add("report.txt", func() {
			fired.Add(1)
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced callback never fired")
	}
	// A follow-up fire would violate coalescing; give it room to show.
	time.Sleep(150 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("burst fired %d times, want 1", n)
	}
}

func TestDebouncer_DistinctKeysFireIndependently(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stopAndWait(time.Second)

	var fired atomic.Int32
	done := make(chan struct{}, 2)
	fire := func() {
		fired.Add(1)
		done <- struct{}{}
	}
	d.add("a.txt", fire)
	d.add("b.txt", fire)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("debounced callback never fired")
		}
	}
	if n := fired.Load(); n != 2 {
		t.Errorf("distinct keys fired %d times, want 2", n)
	}
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	d := newDebouncer(time.Hour)

	var fired atomic.Int32
	d.add("report.txt", func() { fired.Add(1) })
	d.stopAndWait(time.Second)

	if n := fired.Load(); n != 0 {
		t.Errorf("pending callback fired %d times after stop, want 0", n)
	}

	// Adds after stop are ignored.
	d.add("late.txt", func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("post-stop add fired %d times, want 0", n)
	}
}
