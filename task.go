package fibers

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskFunc is the body of a [Task]. It receives the values delivered by the
// first switch into the task, and its return values are delivered to the
// task's parent when the body returns.
type TaskFunc func(args ...any) []any

// transfer is the payload of a single switch between two tasks. Exactly one
// of the fields is meaningful for ordinary switches; err is set when a task
// body panics, or when a resumption deliberately carries a failure.
type transfer struct {
	values []any
	err    error
}

// Task is a cooperatively scheduled thread of control, backed by a
// goroutine. Control moves between tasks only via explicit [Task.Switch]
// calls: within one task tree, at most one task executes at any instant,
// and every other task is suspended at a switch.
//
// A Task is either the root task of a goroutine that first called
// [Current], or was created by [NewTask] (or [Hub.Spawn]) with its parent
// bound to whatever task was current at creation time. When a task's body
// returns, its return values are delivered to the parent and the task is
// finished; it can never be switched into again.
//
// Task state is confined to the task tree: it is only ever read or written
// by the single task running at that moment, with the switch handoffs
// providing the necessary ordering. The resume channel has capacity one so
// a switch never blocks on delivery.
type Task struct {
	parent *Task
	body   TaskFunc
	hub    *Hub

	// resume delivers the payload of the switch that wakes this task.
	resume chan transfer

	// resumeGen counts completed resumptions; switch-back callbacks capture
	// it to detect stale triggers.
	resumeGen uint64

	started  bool
	finished bool

	id uint64
}

var taskIDCounter atomic.Uint64

// current maps goroutine IDs to their tasks. Entries for tasks created by
// this package are removed when the task finishes; root task entries live
// for the goroutine's lifetime, matching the unbounded lifetime of a
// thread-local.
var current struct {
	sync.RWMutex
	tasks map[uint64]*Task
}

func init() {
	current.tasks = make(map[uint64]*Task)
}

// Current returns the task executing on the calling goroutine.
//
// A goroutine that was not started by this package gets a root task
// (parent == nil) created and bound to it on first call. Root tasks are the
// only context from which a [Hub] may be constructed.
func Current() *Task {
	gid := goroutineID()
	current.RLock()
	t := current.tasks[gid]
	current.RUnlock()
	if t != nil {
		return t
	}
	t = &Task{
		id:      taskIDCounter.Add(1),
		resume:  make(chan transfer, 1),
		started: true,
	}
	current.Lock()
	current.tasks[gid] = t
	current.Unlock()
	return t
}

// NewTask creates a task that will run body when first switched into. The
// new task's parent is the task current at creation time.
//
// The task does not run until something switches into it; the values passed
// to that first switch become the body's arguments.
func NewTask(body TaskFunc) *Task {
	cur := Current()
	return &Task{
		id:     taskIDCounter.Add(1),
		parent: cur,
		hub:    cur.hub,
		body:   body,
		resume: make(chan transfer, 1),
	}
}

// Parent returns the task that created this one, or nil for a root task.
func (t *Task) Parent() *Task {
	return t.parent
}

// Finished reports whether the task's body has returned.
func (t *Task) Finished() bool {
	return t.finished
}

// Switch transfers control to t, suspending the caller until some other
// switch delivers control back. It returns the values carried by whichever
// switch resumed the caller, or an error if the resumption carried one
// (e.g. a [PanicError] from a finished child).
//
// Switching into an unstarted task starts it, passing values to its body.
// Switching into the running task itself, or into a finished task, is a
// ConfigurationError.
func (t *Task) Switch(values ...any) ([]any, error) {
	cur := Current()
	if t == cur {
		return nil, newConfigurationError(`cannot switch a task into itself`)
	}
	if t.finished {
		return nil, newConfigurationError(`cannot switch into a finished task`)
	}
	if !t.started {
		t.started = true
		go t.main()
	}
	t.resume <- transfer{values: values}
	in := <-cur.resume
	cur.resumeGen++
	return in.values, in.err
}

// main is the goroutine body of a started task: register, wait for the
// first switch, run the body, and hand the result (or recovered panic) to
// the parent.
func (t *Task) main() {
	gid := goroutineID()
	current.Lock()
	current.tasks[gid] = t
	current.Unlock()
	defer func() {
		current.Lock()
		delete(current.tasks, gid)
		current.Unlock()
	}()

	in := <-t.resume
	t.resumeGen++

	var out transfer
	func() {
		defer func() {
			if r := recover(); r != nil {
				out = transfer{err: PanicError{Value: r}}
			}
		}()
		out.values = t.body(in.values...)
	}()

	t.finished = true
	t.parent.resume <- out
}

// goroutineID returns the current goroutine's ID, parsed from the stack
// header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
