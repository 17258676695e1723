package schedule

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestManualAdvanceFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string

	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(15 * time.Millisecond)
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("after 15ms: got %v, want [a]", got)
	}
	if m.Pending() != 2 {
		t.Errorf("Pending: got %d, want 2", m.Pending())
	}

	m.Advance(15 * time.Millisecond)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("after 30ms: got %v, want [a b c]", got)
	}
	if m.Elapsed() != 30*time.Millisecond {
		t.Errorf("Elapsed: got %v, want 30ms", m.Elapsed())
	}
}

func TestManualStepLeavesSameInstantTimersPending(t *testing.T) {
	m := NewManual()
	var got []string

	m.AfterFunc(5*time.Millisecond, func() { got = append(got, "early") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "due") })

	m.Step(10 * time.Millisecond)
	got = append(got, "caller")
	if m.Elapsed() != 10*time.Millisecond {
		t.Errorf("Elapsed: got %v, want 10ms", m.Elapsed())
	}
	if m.Pending() != 1 {
		t.Errorf("Pending: got %d, want 1", m.Pending())
	}

	m.Advance(0)
	if !reflect.DeepEqual(got, []string{"early", "caller", "due"}) {
		t.Errorf("got %v, want [early caller due]", got)
	}
}

func TestManualTimerStop(t *testing.T) {
	m := NewManual()
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	m.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestManualStopAfterFire(t *testing.T) {
	m := NewManual()
	timer := m.AfterFunc(time.Millisecond, func() {})
	m.Advance(time.Millisecond)
	if timer.Stop() {
		t.Error("Stop after fire should report false")
	}
}

func TestManualMicrotasksRunBeforeNextTask(t *testing.T) {
	m := NewManual()
	var got []string

	m.Post(func() {
		got = append(got, "task1")
		m.Defer(func() { got = append(got, "micro1") })
	})
	m.Post(func() { got = append(got, "task2") })

	m.Flush()

	want := []string{"task1", "micro1", "task2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestManualTimerScheduledFromCallback(t *testing.T) {
	m := NewManual()
	var at []time.Duration

	m.AfterFunc(10*time.Millisecond, func() {
		at = append(at, m.Elapsed())
		m.AfterFunc(10*time.Millisecond, func() {
			at = append(at, m.Elapsed())
		})
	})

	m.Advance(25 * time.Millisecond)

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if !reflect.DeepEqual(at, want) {
		t.Errorf("got %v, want %v", at, want)
	}
}

func TestLoopRunsTasksInOrderWithMicrotasks(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	loop.Post(func() {
		record("task1")
		loop.Defer(func() { record("micro1") })
	})
	loop.Post(func() { record("task2") })
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"task1", "micro1", "task2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLoopDeferFromOutsideWakesLoop(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	done := make(chan struct{})
	loop.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("microtask never ran")
	}
}

func TestLoopAfterFuncAndStop(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	stopped := loop.AfterFunc(5*time.Millisecond, func() {
		t.Error("stopped timer fired")
	})
	if !stopped.Stop() {
		t.Error("Stop should report true for a pending timer")
	}

	fired := make(chan struct{})
	loop.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	done := make(chan struct{})
	loop.Post(func() { panic("boom") })
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after panic")
	}
}

func TestLoopClose(t *testing.T) {
	loop := NewLoop()
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(context.Background()) }()

	loop.Close()
	loop.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run after Close: got %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
