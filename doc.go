// Package fibers multiplexes many cooperatively scheduled tasks over a
// single event reactor, giving blocking-looking code non-blocking wait
// semantics without preemption.
//
// # Architecture
//
// A [Task] is a goroutine-backed coroutine with an explicit two-party
// transfer of control ([Task.Switch]): within one task tree exactly one
// task runs at a time, and a task runs until it explicitly switches away.
// The [Hub] is the tree's root scheduler, itself a switchable task, which
// owns the [Reactor], the deferred callback queue, and the atomic section
// stack.
//
// A task waits for a condition by obtaining a switch-back callback
// ([Hub.SwitchBack]), registering it as the condition's completion
// callback, and suspending via [Hub.Switch]. The completion callback only
// queues a resumption; the hub's run loop performs the actual switch on its
// next pass, so resumption always happens from a single well-defined
// re-entry point, in FIFO order across simultaneously ready tasks.
//
// # Suspension points
//
// The only direct suspension point is [Hub.Switch]. Operations that call it
// are switchpoints, and should be marked with [Switchpoint] (or guarded
// with [Hub.CheckSwitchpoint]): a switchpoint may not be invoked from the
// hub itself, nor from inside an atomic section ([Hub.EnterAtomic]).
//
// # Thread safety
//
// Thread confinement is the concurrency model: all scheduler state is owned
// by the hub's task tree, which runs one task at a time, so no locking is
// involved on the switch paths. The two deliberate exceptions, safe to use
// from any goroutine, are [Hub.RunCallback] and the callbacks returned by
// [Hub.SwitchBack] — they are the bridge by which external completion
// events re-enter the scheduler.
//
// # Usage
//
//	hub, err := fibers.GetHub()
//	if err != nil {
//	    // not on a root task
//	}
//
//	hub.Spawn(func(args ...any) []any {
//	    cb := hub.SwitchBack()
//	    go someAsyncOperation(cb) // cb(values...) on completion
//	    values, err := hub.Switch(fibers.WithTimeout(time.Second))
//	    // resumed with the completion values, or empty on timeout
//	    _ = values
//	    _ = err
//	    return nil
//	})
//
//	// run the scheduler until it drains
//	if _, err := hub.Switch(); err != nil {
//	    // a scheduler invariant was violated
//	}
package fibers
