package lobby

import "log"

type graceKind int

const (
	graceNone graceKind = iota
	graceAuto
	graceForce
)

type readiness int

const (
	notReady readiness = iota
	allReady
	oneUnready
)

// readiness classifies the guests. The master must have a character for
// either soft-start rule to apply.
func (r *Room) readiness() (state readiness, guests int) {
	master := r.master()
	unready := 0
	for _, m := range r.members {
		if m.IsMaster {
			continue
		}
		guests++
		if !m.IsReady {
			unready++
		}
	}

	switch {
	case master == nil || master.Character == "" || guests == 0:
		return notReady, guests
	case unready == 0:
		return allReady, guests
	case unready == 1 && guests >= 2:
		return oneUnready, guests
	}
	return notReady, guests
}

// canStart reports whether the master may start the race now.
func (r *Room) canStart() bool {
	if r.phase != PhaseLobby {
		return false
	}
	master := r.master()
	if master == nil || master.Character == "" {
		return false
	}

	state, guests := r.readiness()
	switch {
	case guests == 0:
		return true
	case state == allReady:
		return true
	case state == oneUnready && r.forceStart:
		return true
	}
	return false
}

// lobbyChanged runs after any roster, readiness, character or settings
// change: a granted force start is withdrawn and the grace timer re-armed
// from scratch.
func (r *Room) lobbyChanged() []Event {
	r.forceStart = false
	r.rearmGrace()
	return []Event{r.stateEvent()}
}

func (r *Room) rearmGrace() {
	r.cancel(TimerGrace)
	r.grace = graceNone
	if r.phase != PhaseLobby {
		return
	}

	state, _ := r.readiness()
	switch state {
	case allReady:
		r.grace = graceAuto
	case oneUnready:
		r.grace = graceForce
	default:
		return
	}
	r.schedule(TimerGrace, r.timing.Grace)
}

func (r *Room) graceElapsed() []Event {
	kind := r.grace
	r.grace = graceNone
	if r.phase != PhaseLobby {
		return nil
	}

	state, _ := r.readiness()
	switch {
	case kind == graceAuto && state == allReady:
		events, err := r.start()
		if err != nil {
			log.Printf("Room %s: auto start failed: %v", r.ID, err)
			return nil
		}
		return events
	case kind == graceForce && state == oneUnready:
		r.forceStart = true
		return []Event{r.stateEvent()}
	}
	return nil
}
