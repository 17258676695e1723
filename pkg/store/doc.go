// Package store provides the push-based observable values the rest of the
// module is built on.
//
// A Readable holds a current value and pushes every change to its
// subscribers. Subscribing replays the current value synchronously, so a
// subscriber always starts from a known state:
//
//	count := store.New(0)
//	unsubscribe := count.Subscribe(func(n int) {
//	    fmt.Println("count is", n) // prints 0 immediately, then 1
//	})
//	count.Set(1)
//	unsubscribe()
//
// A Writable adds Set and Update. Update(fn) is Set(fn(current)).
//
// Stores may be backed by a start/stop notifier: the start function runs
// when the first subscriber arrives and the stop function it returns runs
// when the last subscriber leaves. Derive builds read-only projections on top
// of this, subscribing to their source only while they are observed.
//
// # Ordering
//
// Subscribers are notified synchronously, in subscription order, before Set
// returns. A Set issued from inside a subscriber is queued and delivered once
// the current round finishes, so every subscriber sees changes in the order
// they happened. The guarantee holds for a single cooperative executor; calls
// from several goroutines are safe but only ordered per goroutine.
package store
