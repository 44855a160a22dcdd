package fibers

import (
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// CheckSwitchpoint enforces the two invariants every suspend-capable
// operation must uphold before it may call [Hub.Switch]: the current task
// is not the hub, and no atomic section is open. It returns a
// ConfigurationError when either is violated.
func (h *Hub) CheckSwitchpoint() error {
	if Current() == h.task {
		return newConfigurationError(`cannot call a switchpoint from the hub`)
	}
	if h.InAtomic() {
		return newConfigurationError(`switchpoint called from atomic section`)
	}
	return nil
}

// Switchpoint marks fn as a switchpoint: an operation that may call
// [Hub.Switch] directly. The returned function has the same signature as
// fn, and performs the [Hub.CheckSwitchpoint] invariant checks before
// delegating; a violation surfaces through fn's error result without
// invoking it.
//
// Only functions that invoke Hub.Switch directly need to be marked, not
// ones that reach it via intermediate callables.
//
// fn must be a function whose last result is an error; Switchpoint panics
// at wrap time otherwise.
func Switchpoint[F any](fn F) F {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic(`fibers: Switchpoint requires a function`)
	}
	if t.NumOut() == 0 || t.Out(t.NumOut()-1) != errorType {
		panic(`fibers: Switchpoint requires a function whose last result is error`)
	}
	wrapped := reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		if err := checkSwitchpoint(); err != nil {
			out := make([]reflect.Value, t.NumOut())
			for i := 0; i < t.NumOut()-1; i++ {
				out[i] = reflect.Zero(t.Out(i))
			}
			out[t.NumOut()-1] = reflect.ValueOf(&err).Elem()
			return out
		}
		if t.IsVariadic() {
			return v.CallSlice(in)
		}
		return v.Call(in)
	})
	return wrapped.Interface().(F)
}

// checkSwitchpoint resolves the calling tree's hub and applies the
// switchpoint checks against it.
func checkSwitchpoint() error {
	h, err := GetHub()
	if err != nil {
		return err
	}
	return h.CheckSwitchpoint()
}
