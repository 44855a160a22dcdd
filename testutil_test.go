package fibers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// logRecord is a captured log entry, see captureHandler.
type logRecord struct {
	message string
	level   slog.Level
}

// captureHandler is a slog.Handler that records every entry, for asserting
// on the hub's observability output.
type captureHandler struct {
	mu      sync.Mutex
	records []logRecord
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, logRecord{message: r.Message, level: r.Level})
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count(level slog.Level, message string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int
	for _, r := range h.records {
		if r.level == level && r.message == message {
			n++
		}
	}
	return n
}

// newCaptureLogger returns a logger feeding the capture handler, gated at
// debug so every hub log is observable.
func newCaptureLogger(h *captureHandler) *logiface.Logger[logiface.Event] {
	return islog.L.New(
		islog.L.WithSlogHandler(h),
		logiface.WithLevel[*islog.Event](logiface.LevelDebug),
	).Logger()
}

// stubReactor is a deterministic Reactor for scheduler tests: it never
// blocks, optionally records each poll, and optionally fires one armed
// timer per iteration.
type stubReactor struct {
	mu               sync.Mutex
	record           func(event string)
	timers           []*stubWatcher
	signals          []*stubWatcher
	fireTimersOnPoll bool
}

type stubWatcher struct {
	reactor  *stubReactor
	fn       func()
	armed    bool
	fired    bool
	canceled bool
}

func (w *stubWatcher) Cancel() {
	w.reactor.mu.Lock()
	w.armed = false
	w.canceled = true
	w.reactor.mu.Unlock()
}

func (r *stubReactor) RunOnce() bool {
	r.mu.Lock()
	if r.record != nil {
		r.record(`poll`)
	}
	var fire *stubWatcher
	if r.fireTimersOnPoll {
		for _, w := range r.timers {
			if w.armed {
				w.armed = false
				w.fired = true
				fire = w
				break
			}
		}
	}
	r.mu.Unlock()
	if fire != nil {
		fire.fn()
	}
	return r.armed()
}

func (r *stubReactor) Wake() {}

func (r *stubReactor) ArmTimer(_ time.Duration, fn func()) Watcher {
	w := &stubWatcher{reactor: r, fn: fn, armed: true}
	r.mu.Lock()
	r.timers = append(r.timers, w)
	r.mu.Unlock()
	return w
}

func (r *stubReactor) ArmSignal(_ os.Signal, fn func()) Watcher {
	w := &stubWatcher{reactor: r, fn: fn, armed: true}
	r.mu.Lock()
	r.signals = append(r.signals, w)
	r.mu.Unlock()
	return w
}

func (r *stubReactor) armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.timers {
		if w.armed {
			return true
		}
	}
	for _, w := range r.signals {
		if w.armed {
			return true
		}
	}
	return false
}
