package fibers

// AtomicSection marks a region in which no switchpoint may run. Use it
// when modifying shared state non-atomically, when you cannot be sure that
// nothing called underneath suspends:
//
//	section := hub.EnterAtomic()
//	defer section.Exit()
//	// no switchpoint may be invoked here, even one that would not
//	// actually switch
//
// Sections nest arbitrarily; each Exit must match the most recent Enter.
// Exiting out of order is corrupted nesting discipline, not a user-facing
// condition, and panics.
type AtomicSection struct {
	hub *Hub
}

// EnterAtomic opens an atomic section on the hub, pushing a marker onto the
// atomic section stack. While any section is open, every switchpoint check
// fails with a ConfigurationError.
func (h *Hub) EnterAtomic() *AtomicSection {
	s := &AtomicSection{hub: h}
	h.atomic = append(h.atomic, s)
	return s
}

// Exit closes the section, popping its marker. The marker must be the most
// recently pushed one.
func (s *AtomicSection) Exit() {
	h := s.hub
	if len(h.atomic) == 0 {
		panic(`fibers: atomic section exited without matching enter`)
	}
	top := h.atomic[len(h.atomic)-1]
	if top != s {
		panic(`fibers: atomic sections exited out of order`)
	}
	h.atomic[len(h.atomic)-1] = nil
	h.atomic = h.atomic[:len(h.atomic)-1]
}

// InAtomic reports whether any atomic section is currently open.
func (h *Hub) InAtomic() bool {
	return len(h.atomic) > 0
}
