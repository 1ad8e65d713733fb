package lobby

import (
	"slices"
	"strings"

	"github.com/wricardo/maze-race/game/maze"
)

// MazeFunc builds the maze for a race.
type MazeFunc func(width, height int) (*maze.Maze, error)

// Options configure a new Room.
type Options struct {
	ID       string
	Settings Settings
	Timing   Timing
	Limits   Limits
	Clock    Clock
	NewMaze  MazeFunc

	// OnTimer is called from the timer goroutine when a room timer elapses.
	// The owner must hand (kind, gen) back to Fire on its own goroutine.
	OnTimer func(roomID string, kind TimerKind, gen uint64)
}

// Room is a single game room: roster, readiness, race and timers.
// A Room is not safe for concurrent use; its owner serializes all calls.
type Room struct {
	ID string

	settings Settings
	timing   Timing
	limits   Limits
	clock    Clock
	newMaze  MazeFunc
	onTimer  func(string, TimerKind, uint64)

	members map[string]*Member
	order   []string

	phase      Phase
	race       *race
	forceStart bool
	grace      graceKind

	timers [timerKinds]pendingTimer
	gen    uint64
}

// New creates an empty room in the lobby phase.
func New(opts Options) *Room {
	r := &Room{
		ID:       opts.ID,
		settings: opts.Settings,
		timing:   opts.Timing,
		limits:   opts.Limits,
		clock:    opts.Clock,
		newMaze:  opts.NewMaze,
		onTimer:  opts.OnTimer,
		members:  make(map[string]*Member),
		phase:    PhaseLobby,
	}
	if r.settings == (Settings{}) {
		r.settings = DefaultSettings()
	}
	if r.timing == (Timing{}) {
		r.timing = DefaultTiming()
	}
	if r.limits == (Limits{}) {
		r.limits = DefaultLimits()
	}
	if r.clock == nil {
		r.clock = SystemClock()
	}
	if r.newMaze == nil {
		r.newMaze = maze.Generate
	}
	if r.onTimer == nil {
		r.onTimer = func(string, TimerKind, uint64) {}
	}
	return r
}

func (r *Room) Phase() Phase { return r.phase }

func (r *Room) Settings() Settings { return r.settings }

func (r *Room) MaxPlayers() int { return r.limits.MaxPlayers }

func (r *Room) MemberCount() int { return len(r.members) }

// IsOpen reports whether the room still accepts joins.
func (r *Room) IsOpen() bool { return r.phase == PhaseLobby }

// MemberIDs returns member ids in join order.
func (r *Room) MemberIDs() []string { return slices.Clone(r.order) }

func (r *Room) Has(id string) bool {
	_, ok := r.members[id]
	return ok
}

// Member returns a copy of the member with the given id.
func (r *Room) Member(id string) (Member, bool) {
	m, ok := r.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Master returns the id of the current master, or "" for an empty room.
func (r *Room) Master() string {
	for _, id := range r.order {
		if r.members[id].IsMaster {
			return id
		}
	}
	return ""
}

// Join adds a player. The first player to join becomes master.
func (r *Room) Join(id, nickname string) ([]Event, error) {
	if r.Has(id) {
		return nil, ErrAlreadyMember
	}
	if r.phase != PhaseLobby {
		return nil, ErrAlreadyStarted
	}
	if len(r.members) >= r.limits.MaxPlayers {
		return nil, ErrRoomFull
	}

	r.members[id] = &Member{ID: id, Nickname: nickname, IsMaster: len(r.members) == 0}
	r.order = append(r.order, id)
	return r.lobbyChanged(), nil
}

// Leave removes a player. empty is true when the room has no members left,
// in which case every timer has been stopped and the room should be dropped.
func (r *Room) Leave(id string) (events []Event, empty bool) {
	m, ok := r.members[id]
	if !ok {
		return nil, len(r.members) == 0
	}

	delete(r.members, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })

	if len(r.members) == 0 {
		r.cancelAll()
		r.forceStart = false
		return nil, true
	}

	if m.IsMaster {
		// earliest remaining joiner inherits the room
		r.members[r.order[0]].IsMaster = true
	}

	events = append(events, r.toAll(EventPlayerLeft, id))

	switch r.phase {
	case PhaseLobby:
		events = append(events, r.lobbyChanged()...)
	case PhaseRacing:
		events = append(events, r.stateEvent())
		if r.unfinished() == 0 {
			events = append(events, r.endRace()...)
		}
	default:
		events = append(events, r.stateEvent())
	}
	return events, false
}

// Rename refreshes a member's nickname from its profile.
func (r *Room) Rename(id, nickname string) []Event {
	m, ok := r.members[id]
	if !ok || m.Nickname == nickname {
		return nil
	}
	m.Nickname = nickname
	return []Event{r.stateEvent()}
}

// SelectCharacter assigns an avatar that no other member holds.
func (r *Room) SelectCharacter(id, character string) ([]Event, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotMember
	}
	if r.phase != PhaseLobby {
		return nil, ErrWrongPhase
	}

	character = strings.TrimSpace(character)
	if character == "" || len(character) > maxCharacterLength {
		return nil, ErrInvalidChar
	}
	if m.Character == character {
		return nil, nil
	}
	for _, other := range r.members {
		if other.ID != id && other.Character == character {
			return nil, ErrCharacterTaken
		}
	}

	m.Character = character
	return r.lobbyChanged(), nil
}

// SetReady toggles readiness. Getting ready requires a character.
func (r *Room) SetReady(id string, ready bool) ([]Event, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotMember
	}
	if r.phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if ready && m.Character == "" {
		return nil, ErrNoCharacter
	}
	if m.IsReady == ready {
		return nil, nil
	}

	m.IsReady = ready
	return r.lobbyChanged(), nil
}

// ChangeSettings replaces the maze settings and un-readies everyone.
func (r *Room) ChangeSettings(id string, s Settings) ([]Event, error) {
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

	s, err := s.Normalize(r.limits)
	if err != nil {
		return nil, err
	}

	r.settings = s
	for _, member := range r.members {
		member.IsReady = false
	}

	events := []Event{r.toAll(EventUnreadyAll, nil)}
	return append(events, r.lobbyChanged()...), nil
}

// Close stops every timer and tells the members the room is gone.
func (r *Room) Close() []Event {
	r.cancelAll()
	if len(r.members) == 0 {
		return nil
	}
	return []Event{r.toAll(EventRoomClosed, Closed{RoomID: r.ID})}
}

// Snapshot returns the full room view.
func (r *Room) Snapshot() Snapshot {
	players := make(map[string]Member, len(r.members))
	for id, m := range r.members {
		players[id] = *m
	}

	s := Snapshot{
		ID:                  r.ID,
		Settings:            r.settings,
		Players:             players,
		Order:               slices.Clone(r.order),
		MaxPlayers:          r.limits.MaxPlayers,
		Phase:               r.phase,
		GameStarted:         r.phase != PhaseLobby,
		GameEnded:           r.phase == PhaseFinished,
		ForceStartAvailable: r.forceStart,
	}
	switch r.grace {
	case graceAuto:
		s.PendingStart = "auto"
	case graceForce:
		s.PendingStart = "force"
	}
	return s
}

func (r *Room) master() *Member {
	if id := r.Master(); id != "" {
		return r.members[id]
	}
	return nil
}

func (r *Room) stateEvent() Event {
	return r.toAll(EventLobbyState, r.Snapshot())
}

func (r *Room) toAll(name string, payload any) Event {
	return Event{Name: name, To: slices.Clone(r.order), Payload: payload}
}

func (r *Room) toOthers(id, name string, payload any) Event {
	to := make([]string, 0, len(r.order))
	for _, v := range r.order {
		if v != id {
			to = append(to, v)
		}
	}
	return Event{Name: name, To: to, Payload: payload}
}
