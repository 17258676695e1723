// Package schedule provides the timer and microtask facility the reactive
// stores run on.
//
// Stores never start goroutines or timers of their own. Every delayed or
// deferred piece of work goes through a Scheduler, which gives the library a
// single cooperative executor:
//
//   - AfterFunc schedules a timer callback (a macrotask).
//   - Defer queues a microtask that runs once the current task finishes,
//     before any other task or timer.
//   - Post queues a macrotask and may be called from any goroutine.
//
// Two implementations are provided. Loop is a real event loop driven by one
// goroutine; Manual is a virtual clock that only moves when told to, which
// makes timing behavior deterministic in tests and tools.
//
//	loop := schedule.NewLoop()
//	go loop.Run(ctx)
//
//	search := timeshape.Debounce(loop, 300*time.Millisecond, query)
package schedule

import "time"

// Timer is a handle to a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It returns true if the call
	// stopped the timer and false if the timer already fired or was stopped.
	Stop() bool
}

// Scheduler runs timers, macrotasks and microtasks on a single executor.
type Scheduler interface {
	// AfterFunc runs fn on the executor once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer

	// Defer runs fn after the currently executing task and before the next
	// task or timer.
	Defer(fn func())

	// Post runs fn as a new task on the executor.
	Post(fn func())
}
