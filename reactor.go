package fibers

import (
	"container/heap"
	"os"
	"os/signal"
	"sync"
	"time"
)

// Reactor is the event source driven by a [Hub]. One iteration blocks until
// at least one event fires, or until Wake is called; the hub runs exactly
// one iteration per scheduler pass, inside an atomic section.
//
// Implementations must be safe for Wake to be called from any goroutine.
// RunOnce, ArmTimer, and ArmSignal are only ever called from the hub's task
// tree (one logical thread).
type Reactor interface {
	// RunOnce runs a single reactor iteration, blocking until at least one
	// event fires or Wake is called. It reports whether any watcher remains
	// armed. With no armed watchers it must return false without blocking.
	RunOnce() bool

	// Wake causes a blocked RunOnce to return promptly. If no iteration is
	// in progress, the next one returns without blocking.
	Wake()

	// ArmTimer arms a one-shot timer that invokes fn after d, on the
	// goroutine running RunOnce.
	ArmTimer(d time.Duration, fn func()) Watcher

	// ArmSignal arms a one-shot watcher that invokes fn when the process
	// receives sig, on the goroutine running RunOnce.
	ArmSignal(sig os.Signal, fn func()) Watcher
}

// Watcher is a handle to an armed reactor event source.
type Watcher interface {
	// Cancel releases the watcher. It is idempotent, and safe to call
	// whether or not the watcher has fired.
	Cancel()
}

// NewReactor returns the default reactor: one-shot timers off a min-heap,
// one-shot signal watchers fed by os/signal, and a capacity-one wake
// channel. [GetHub] uses it unless [WithReactor] substitutes another.
func NewReactor() Reactor {
	r := &reactor{
		signals:  make(map[os.Signal][]*signalWatcher),
		notified: make(map[os.Signal]bool),
		sigCh:    make(chan os.Signal, 8),
		wakeCh:   make(chan struct{}, 1),
	}
	return r
}

type reactor struct {
	mu       sync.Mutex
	timers   timerHeap
	signals  map[os.Signal][]*signalWatcher
	notified map[os.Signal]bool
	sigCh    chan os.Signal
	wakeCh   chan struct{}

	// active counts armed watchers of both kinds.
	active int
}

func (r *reactor) RunOnce() bool {
	if due := r.takeDueTimers(); len(due) > 0 {
		for _, fn := range due {
			fn()
		}
		return r.remaining()
	}

	r.mu.Lock()
	var tm *time.Timer
	var timerC <-chan time.Time
	if len(r.timers) > 0 {
		tm = time.NewTimer(time.Until(r.timers[0].when))
		timerC = tm.C
	}
	idle := r.active == 0
	r.mu.Unlock()

	if idle {
		// Nothing armed: service a queued wake, but never block.
		select {
		case <-r.wakeCh:
		default:
		}
		return false
	}

	select {
	case <-r.wakeCh:
	case <-timerC:
		for _, fn := range r.takeDueTimers() {
			fn()
		}
	case sig := <-r.sigCh:
		for _, fn := range r.takeSignalWatchers(sig) {
			fn()
		}
	}
	if tm != nil {
		tm.Stop()
	}
	return r.remaining()
}

func (r *reactor) Wake() {
	// The capacity-one channel deduplicates concurrent wakes; a pending
	// token already guarantees the next iteration returns promptly.
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

func (r *reactor) ArmTimer(d time.Duration, fn func()) Watcher {
	w := &timerWatcher{
		reactor: r,
		when:    time.Now().Add(d),
		fn:      fn,
	}
	r.mu.Lock()
	heap.Push(&r.timers, w)
	w.armed = true
	r.active++
	r.mu.Unlock()
	return w
}

func (r *reactor) ArmSignal(sig os.Signal, fn func()) Watcher {
	w := &signalWatcher{
		reactor: r,
		sig:     sig,
		fn:      fn,
	}
	r.mu.Lock()
	if !r.notified[sig] {
		// The subscription is never undone: cancelling the last watcher for
		// a signal leaves the channel subscribed, and dispatch drops
		// deliveries with no armed watcher. Resetting the process-wide
		// disposition out from under other Notify users would be worse.
		signal.Notify(r.sigCh, sig)
		r.notified[sig] = true
	}
	r.signals[sig] = append(r.signals[sig], w)
	w.armed = true
	r.active++
	r.mu.Unlock()
	return w
}

// takeDueTimers pops and disarms every expired timer, returning their
// callbacks for invocation outside the lock.
func (r *reactor) takeDueTimers() []func() {
	now := time.Now()
	var due []func()
	r.mu.Lock()
	for len(r.timers) > 0 && !r.timers[0].when.After(now) {
		w := heap.Pop(&r.timers).(*timerWatcher)
		w.armed = false
		r.active--
		due = append(due, w.fn)
	}
	r.mu.Unlock()
	return due
}

// takeSignalWatchers disarms and returns the callbacks of every watcher
// armed for sig. A delivery with no armed watcher is dropped.
func (r *reactor) takeSignalWatchers(sig os.Signal) []func() {
	var fired []func()
	r.mu.Lock()
	for _, w := range r.signals[sig] {
		if w.armed {
			w.armed = false
			r.active--
			fired = append(fired, w.fn)
		}
	}
	delete(r.signals, sig)
	r.mu.Unlock()
	return fired
}

func (r *reactor) remaining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active > 0
}

type timerWatcher struct {
	reactor *reactor
	when    time.Time
	fn      func()
	index   int
	armed   bool
}

func (w *timerWatcher) Cancel() {
	r := w.reactor
	r.mu.Lock()
	if w.armed {
		heap.Remove(&r.timers, w.index)
		w.armed = false
		r.active--
	}
	r.mu.Unlock()
}

type signalWatcher struct {
	reactor *reactor
	sig     os.Signal
	fn      func()
	armed   bool
}

func (w *signalWatcher) Cancel() {
	r := w.reactor
	r.mu.Lock()
	if w.armed {
		ws := r.signals[w.sig]
		for i, other := range ws {
			if other == w {
				r.signals[w.sig] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(r.signals[w.sig]) == 0 {
			delete(r.signals, w.sig)
		}
		w.armed = false
		r.active--
	}
	r.mu.Unlock()
}

// timerHeap is a min-heap of armed timer watchers, ordered by deadline.
type timerHeap []*timerWatcher

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	w := x.(*timerWatcher)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}
