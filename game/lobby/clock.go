package lobby

import "time"

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

// Clock schedules room timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// TimerKind identifies one of the room's timer slots.
type TimerKind int

const (
	TimerGrace TimerKind = iota
	TimerCountdown
	TimerWrapUp
	timerKinds
)

func (k TimerKind) String() string {
	switch k {
	case TimerGrace:
		return "grace"
	case TimerCountdown:
		return "countdown"
	case TimerWrapUp:
		return "wrap-up"
	}
	return "unknown"
}

type pendingTimer struct {
	gen   uint64
	timer Timer
}

// schedule arms the slot for kind, stopping whatever was pending there.
// The callback only carries identifiers; the room is touched again through
// Fire on the owner's goroutine.
func (r *Room) schedule(kind TimerKind, d time.Duration) {
	r.cancel(kind)

	r.gen++
	gen, id, notify := r.gen, r.ID, r.onTimer
	r.timers[kind] = pendingTimer{
		gen: gen,
		timer: r.clock.AfterFunc(d, func() {
			notify(id, kind, gen)
		}),
	}
}

func (r *Room) cancel(kind TimerKind) {
	if t := r.timers[kind].timer; t != nil {
		t.Stop()
	}
	r.timers[kind] = pendingTimer{}
}

func (r *Room) cancelAll() {
	for k := TimerKind(0); k < timerKinds; k++ {
		r.cancel(k)
	}
	r.grace = graceNone
}

// Pending reports whether a timer of the given kind is armed.
func (r *Room) Pending(kind TimerKind) bool {
	return r.timers[kind].timer != nil
}

// Fire delivers an elapsed timer. Fires for a slot that has since been
// cancelled or re-armed are dropped.
func (r *Room) Fire(kind TimerKind, gen uint64) []Event {
	if kind < 0 || kind >= timerKinds {
		return nil
	}
	p := r.timers[kind]
	if p.timer == nil || p.gen != gen {
		return nil
	}
	r.timers[kind] = pendingTimer{}

	switch kind {
	case TimerGrace:
		return r.graceElapsed()
	case TimerCountdown:
		return r.beginRace()
	case TimerWrapUp:
		return r.endRace()
	}
	return nil
}
