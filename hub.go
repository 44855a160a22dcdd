package fibers

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// Callback is a deferred callable queued via [Hub.RunCallback], invoked
// with the arguments captured at enqueue time.
type Callback func(args ...any)

// callbackEntry pairs a queued callback with its captured arguments.
type callbackEntry struct {
	fn   Callback
	args []any
}

// Hub is the root scheduler of a task tree: a switchable task of its own
// that owns the reactor, the deferred callback queue, and the atomic
// section stack, and drives the run loop.
//
// There is exactly one hub per task tree, constructed lazily by [GetHub]
// from the tree's root task. Non-root tasks use the hub to wait for a
// condition to be signalled:
//
//  1. Obtain a switch-back callback via [Hub.SwitchBack].
//  2. Register it as the completion callback of the awaited condition.
//  3. Call [Hub.Switch] to suspend and let other tasks run.
//  4. When the condition fires, the callback schedules a resumption; the
//     hub's next pass switches back, and Switch returns the values the
//     callback was invoked with.
//
// The callback queue accepts entries from any goroutine; every other part
// of the hub is confined to the task tree, which runs one task at a time.
type Hub struct {
	task    *Task
	reactor Reactor
	log     *logiface.Logger[logiface.Event]

	// cbMu guards callbacks, the only hub state shared with foreign
	// goroutines (external completion callbacks enqueue from anywhere).
	cbMu      sync.Mutex
	callbacks *queue.Queue

	// atomic is the LIFO stack of open atomic sections. Task-tree confined.
	atomic []*AtomicSection

	id uint64
}

var hubIDCounter atomic.Uint64

// GetHub returns the calling task tree's hub, constructing it on first
// call. Construction is only permitted from the tree's root task (a task
// with no parent); a call from a child task before the hub exists returns a
// ConfigurationError. Options are applied only by the call that constructs
// the hub, and are ignored once it exists.
func GetHub(opts ...HubOption) (*Hub, error) {
	cur := Current()
	if cur.hub != nil {
		return cur.hub, nil
	}
	root := cur
	for root.parent != nil {
		root = root.parent
	}
	if root.hub == nil {
		if cur.parent != nil {
			return nil, newConfigurationError(`hub must be created from the root task`)
		}
		h, err := newHub(root, opts)
		if err != nil {
			return nil, err
		}
		root.hub = h
	}
	cur.hub = root.hub
	return cur.hub, nil
}

func newHub(root *Task, opts []HubOption) (*Hub, error) {
	cfg, err := resolveHubOptions(opts)
	if err != nil {
		return nil, err
	}
	h := &Hub{
		id:        hubIDCounter.Add(1),
		reactor:   cfg.reactor,
		callbacks: queue.New(),
	}
	h.log = cfg.logger.Clone().
		Uint64(`hub`, h.id).
		Logger()
	h.task = &Task{
		id:     taskIDCounter.Add(1),
		parent: root,
		hub:    h,
		body:   h.run,
		resume: make(chan transfer, 1),
	}
	return h, nil
}

// Task returns the hub's own task handle. The hub is switchable like any
// other task; this is how the run loop is entered.
func (h *Hub) Task() *Task {
	return h.task
}

// Reactor returns the reactor driven by this hub.
func (h *Hub) Reactor() Reactor {
	return h.reactor
}

// run is the hub task's body. One pass: drain the callback queue, then run
// a single reactor iteration inside an atomic section (a switch while the
// reactor is polling would corrupt loop re-entrancy). When the reactor has
// no armed watchers and the queue is empty the hub switches to its parent,
// handing control back to the root task; the loop resumes where it left
// off on the next switch into the hub.
func (h *Hub) run(...any) []any {
	if Current() != h.task {
		panic(`fibers: run may only be entered from the hub task`)
	}
	for {
		h.runCallbacks()

		section := h.EnterAtomic()
		active := h.reactor.RunOnce()
		section.Exit()

		if !active && h.pendingCallbacks() == 0 {
			if _, err := h.task.parent.Switch(); err != nil {
				h.log.Err().
					Err(err).
					Log(`switch to hub parent failed`)
			}
		}
	}
}

// Switch suspends the current task and switches into the hub, returning
// the values delivered by whichever switch-back resumed it.
//
// When called from the root task this starts (or resumes) the run loop,
// returning once the hub drains, unless a timeout or interrupt is armed.
// From any other task it suspends until a registered switch-back callback,
// the optional timeout, or the optional interrupt fires. Armed timeout and
// interrupt watchers are both released on every exit path, whichever of
// them fired.
//
// Calling Switch from the hub itself is a ConfigurationError.
func (h *Hub) Switch(opts ...SwitchOption) ([]any, error) {
	if Current() == h.task {
		return nil, newConfigurationError(`cannot switch into the hub from the hub`)
	}
	cfg, err := resolveSwitchOptions(opts)
	if err != nil {
		return nil, err
	}
	var timer, interrupt Watcher
	if cfg.timeout > 0 {
		cb := h.SwitchBack()
		timer = h.reactor.ArmTimer(cfg.timeout, func() { cb() })
	}
	if cfg.interrupt {
		cb := h.SwitchBack()
		interrupt = h.reactor.ArmSignal(cfg.interruptSignal, func() { cb() })
	}
	defer func() {
		if timer != nil {
			timer.Cancel()
		}
		if interrupt != nil {
			interrupt.Cancel()
		}
	}()
	return h.task.Switch()
}

// SwitchBack returns a one-shot callback bound to the current task.
// Invoking it queues a resumption of that task, carrying the invocation's
// arguments; the hub's next callback pass performs the actual switch. The
// indirection guarantees resumption always happens from within the run
// loop, in FIFO order across simultaneously ready tasks, never
// synchronously from inside an unrelated completion callback.
//
// The callback is safe to invoke from any goroutine. A second invocation,
// or a resumption that has been overtaken (the task was already resumed by
// another trigger), is dropped.
func (h *Hub) SwitchBack() Callback {
	t := Current()
	gen := t.resumeGen
	var fired atomic.Bool
	return func(args ...any) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		h.RunCallback(func(...any) {
			if t.finished || t.resumeGen != gen {
				h.log.Debug().
					Uint64(`task`, t.id).
					Log(`dropping stale switch-back`)
				return
			}
			if _, err := t.Switch(args...); err != nil {
				h.log.Err().
					Err(err).
					Uint64(`task`, t.id).
					Log(`uncaught error in task`)
			}
		})
	}
}

// RunCallback queues fn to be invoked with args on the hub's next pass, and
// signals the reactor to stop blocking so the callback is serviced promptly.
// Callbacks run in the order they were added. Safe to call from any
// goroutine.
func (h *Hub) RunCallback(fn Callback, args ...any) {
	if fn == nil {
		return
	}
	h.cbMu.Lock()
	h.callbacks.Add(callbackEntry{fn: fn, args: args})
	h.cbMu.Unlock()
	h.reactor.Wake()
}

// Spawn creates a task whose parent is the hub, and queues its start on the
// hub's next pass with the given arguments. When the body returns or
// panics, control comes back to the run loop; a panic is reported through
// the hub's logger and does not disturb other tasks.
func (h *Hub) Spawn(body TaskFunc, args ...any) *Task {
	t := &Task{
		id:     taskIDCounter.Add(1),
		parent: h.task,
		hub:    h,
		body:   body,
		resume: make(chan transfer, 1),
	}
	h.RunCallback(func(...any) {
		if _, err := t.Switch(args...); err != nil {
			h.log.Err().
				Err(err).
				Uint64(`task`, t.id).
				Log(`uncaught error in task`)
		}
	})
	return t
}

// runCallbacks executes one drain pass: exactly the entries present at the
// start of the pass. Entries enqueued by a running callback wait for the
// next pass. A failing callback is reported and does not abort the pass.
func (h *Hub) runCallbacks() {
	h.cbMu.Lock()
	n := h.callbacks.Length()
	entries := make([]callbackEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, h.callbacks.Remove().(callbackEntry))
	}
	h.cbMu.Unlock()
	for _, e := range entries {
		h.invoke(e)
	}
}

func (h *Hub) invoke(e callbackEntry) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Err().
				Err(PanicError{Value: r}).
				Log(`uncaught error in callback`)
		}
	}()
	e.fn(e.args...)
}

func (h *Hub) pendingCallbacks() int {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	return h.callbacks.Length()
}
