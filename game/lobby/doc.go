// Package lobby implements a single maze race room.
//
// A Room moves through four phases:
//
//	lobby -> countdown -> racing -> finished -> lobby
//
// In the lobby players join, pick a unique character and mark themselves
// ready. The master (the creator, or the earliest remaining joiner once the
// creator leaves) needs a character to start, and may start alone at any
// time. Once every guest is ready the master may start, and a grace timer
// also starts the race on its own. With two or more guests and a single
// holdout, the grace timer instead unlocks a force start. Any change to the
// roster, characters, readiness or settings re-arms the grace timer; a
// settings change also clears every ready flag.
//
// Starting generates the maze, announces the countdown, and after the
// countdown delay sends the maze to every racer. The first finisher arms the
// wrap-up timer; racers still running when it fires are ranked as retired.
// A rematch returns the room to the lobby with the same members.
//
// Events:
//
// Room methods never perform I/O. Each returns the Events it produced, each
// addressed to a list of member ids, and the owner delivers them.
//
// Timers:
//
// Three timer slots exist per room: grace, countdown and wrap-up. Arming a
// slot cancels its previous timer and bumps a generation number. Timers fire
// through Options.OnTimer; the owner passes (kind, gen) back to Fire on its
// own goroutine, and a fire whose generation is stale does nothing.
package lobby
