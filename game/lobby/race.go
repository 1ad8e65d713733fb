package lobby

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wricardo/maze-race/game/maze"
)

type participant struct {
	id       string
	nickname string
}

type race struct {
	maze         *maze.Maze
	participants []participant
	finishers    []Finisher
	rankings     []Finisher
	startedAt    time.Time
}

func (rc *race) isParticipant(id string) bool {
	return slices.ContainsFunc(rc.participants, func(p participant) bool { return p.id == id })
}

func (rc *race) hasFinished(id string) bool {
	return slices.ContainsFunc(rc.finishers, func(f Finisher) bool { return f.ID == id })
}

// Start moves the room into the countdown on the master's request.
func (r *Room) Start(id string) ([]Event, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotMember
	}
	if !m.IsMaster {
		return nil, ErrNotMaster
	}
	if r.phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if !r.canStart() {
		return nil, ErrNotStartable
	}
	return r.start()
}

// start generates the maze up front so the countdown only delays delivery.
func (r *Room) start() ([]Event, error) {
	mz, err := r.newMaze(r.settings.Width, r.settings.Height)
	if err != nil {
		return nil, fmt.Errorf("generate maze: %w", err)
	}

	r.cancel(TimerGrace)
	r.grace = graceNone
	r.forceStart = false

	r.race = &race{maze: mz}
	r.phase = PhaseCountdown
	r.schedule(TimerCountdown, r.timing.Countdown)

	return []Event{
		r.toAll(EventCountdown, Countdown{Seconds: int(r.timing.Countdown / time.Second)}),
		r.stateEvent(),
	}, nil
}

// beginRace fixes the participant list and ships the maze to everyone.
func (r *Room) beginRace() []Event {
	if r.phase != PhaseCountdown || r.race == nil {
		return nil
	}

	r.phase = PhaseRacing
	r.race.startedAt = r.clock.Now()
	r.race.participants = make([]participant, 0, len(r.order))
	for _, id := range r.order {
		r.race.participants = append(r.race.participants, participant{id: id, nickname: r.members[id].Nickname})
	}

	mz := r.race.maze
	players := make(map[string]Member, len(r.members))
	for id, m := range r.members {
		players[id] = *m
	}

	return []Event{r.toAll(EventRaceData, RaceData{
		Maze:     mz.Grid,
		StartPos: mz.Start,
		EndPos:   mz.End,
		MazeSize: MazeSize{Width: mz.Width, Height: mz.Height},
		Players:  players,
	})}
}

// Move relays a position update to the other members. Positions are not
// checked against the maze.
func (r *Room) Move(id string, x, y int) []Event {
	m, ok := r.members[id]
	if !ok {
		return nil
	}
	return []Event{r.toOthers(id, EventPlayerMoved, Movement{ID: id, X: x, Y: y, Character: m.Character})}
}

// Finish records a finisher. Rank follows the order reports arrive in;
// finishTime is the client's display value.
func (r *Room) Finish(id, finishTime string) ([]Event, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotMember
	}
	if r.phase != PhaseRacing {
		return nil, ErrWrongPhase
	}
	if !r.race.isParticipant(id) {
		return nil, ErrNotMember
	}
	if r.race.hasFinished(id) {
		return nil, ErrAlreadyFinished
	}

	elapsed := r.clock.Now().Sub(r.race.startedAt)
	finishTime = strings.TrimSpace(finishTime)
	if finishTime == "" || len(finishTime) > maxFinishTimeLength {
		finishTime = formatElapsed(elapsed)
	}

	r.race.finishers = append(r.race.finishers, Finisher{
		ID:         id,
		Rank:       len(r.race.finishers) + 1,
		Nickname:   m.Nickname,
		FinishTime: finishTime,
		ElapsedMs:  elapsed.Milliseconds(),
	})

	events := []Event{r.toAll(EventRankingUpdate, slices.Clone(r.race.finishers))}

	if len(r.race.finishers) == 1 {
		r.schedule(TimerWrapUp, r.timing.WrapUp)
	}
	if r.unfinished() == 0 {
		events = append(events, r.endRace()...)
	}
	return events, nil
}

// unfinished counts present participants that have not finished.
func (r *Room) unfinished() int {
	n := 0
	for _, id := range r.order {
		if r.race.isParticipant(id) && !r.race.hasFinished(id) {
			n++
		}
	}
	return n
}

// endRace closes the race. Participants without a finish are appended as
// retired after the last real rank.
func (r *Room) endRace() []Event {
	if r.phase != PhaseRacing || r.race == nil {
		return nil
	}
	r.cancel(TimerWrapUp)
	r.phase = PhaseFinished

	rankings := slices.Clone(r.race.finishers)
	for _, p := range r.race.participants {
		if r.race.hasFinished(p.id) {
			continue
		}
		nickname := p.nickname
		if m, ok := r.members[p.id]; ok {
			nickname = m.Nickname
		}
		rankings = append(rankings, Finisher{
			ID:         p.id,
			Rank:       len(rankings) + 1,
			Nickname:   nickname,
			FinishTime: RetiredFinishTime,
			Retired:    true,
		})
	}
	r.race.rankings = rankings

	return []Event{r.toAll(EventGameOver, Results{
		MazeSize: r.race.maze.Size(),
		Rankings: slices.Clone(rankings),
	})}
}

// Rankings returns the final rankings of the last finished race.
func (r *Room) Rankings() []Finisher {
	if r.race == nil {
		return nil
	}
	return slices.Clone(r.race.rankings)
}

// Reset returns a finished room to the lobby. Characters are kept,
// readiness is cleared.
func (r *Room) Reset(id string) ([]Event, error) {
	if !r.Has(id) {
		return nil, ErrNotMember
	}
	if r.phase != PhaseFinished {
		return nil, ErrWrongPhase
	}

	r.cancelAll()
	r.race = nil
	r.forceStart = false
	r.phase = PhaseLobby
	for _, m := range r.members {
		m.IsReady = false
	}
	r.rearmGrace()

	return []Event{r.toAll(EventReturnToLobby, r.Snapshot())}, nil
}

func formatElapsed(d time.Duration) string {
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%02d:%02d.%02d", cs/6000, (cs/100)%60, cs%100)
}
