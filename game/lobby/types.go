package lobby

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wricardo/maze-race/game/maze"
)

var (
	ErrNotMember       = errors.New("player is not in this room")
	ErrNotMaster       = errors.New("only the room master can do that")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrAlreadyMember   = errors.New("player already in room")
	ErrCharacterTaken  = errors.New("character already taken")
	ErrInvalidChar     = errors.New("invalid character")
	ErrNoCharacter     = errors.New("choose a character before getting ready")
	ErrNotStartable    = errors.New("not every player is ready")
	ErrWrongPhase      = errors.New("not allowed in the current phase")
	ErrAlreadyFinished = errors.New("player already finished")
	ErrInvalidSettings = errors.New("invalid room settings")
)

// Phase is the room lifecycle state.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
	PhaseFinished  Phase = "finished"
)

// Outbound event names.
const (
	EventLobbyState    = "lobbyStateUpdate"
	EventUnreadyAll    = "unReadyAllPlayers"
	EventCountdown     = "gameCountdown"
	EventRaceData      = "gameStartingWithData"
	EventPlayerMoved   = "playerMoved"
	EventRankingUpdate = "rankingUpdate"
	EventGameOver      = "gameOver"
	EventPlayerLeft    = "playerDisconnected"
	EventRoomClosed    = "roomClosed"
	EventReturnToLobby = "returnToLobby"
)

const (
	RetiredFinishTime  = "retire"
	SettingsModePreset = "preset"
	SettingsModeCustom = "custom"

	maxCharacterLength  = 16
	maxFinishTimeLength = 32

	defaultMazeSize      = 11
	defaultMaxPlayers    = 4
	defaultMinMazeSize   = 7
	defaultMaxMazeSize   = 151
	defaultCountdown     = 5 * time.Second
	defaultWrapUpTimeout = 20 * time.Second
	defaultGraceDelay    = 5 * time.Second
)

// Settings are the master-controlled maze options. In preset mode Preset
// holds the side length of a square maze.
type Settings struct {
	Mode   string `json:"mode"`
	Preset string `json:"preset,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DefaultSettings is the 11x11 custom maze a new room starts with.
func DefaultSettings() Settings {
	return Settings{Mode: SettingsModeCustom, Width: defaultMazeSize, Height: defaultMazeSize}
}

// Normalize resolves presets and checks the dimensions against limits.
func (s Settings) Normalize(l Limits) (Settings, error) {
	switch s.Mode {
	case SettingsModePreset:
		size, err := strconv.Atoi(strings.TrimSpace(s.Preset))
		if err != nil {
			return s, fmt.Errorf("%w: preset %q is not a size", ErrInvalidSettings, s.Preset)
		}
		s.Width, s.Height = size, size
	case "":
		s.Mode = SettingsModeCustom
	case SettingsModeCustom:
	default:
		return s, fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
	}

	for _, v := range []int{s.Width, s.Height} {
		if v%2 == 0 {
			return s, fmt.Errorf("%w: %dx%d must be odd", ErrInvalidSettings, s.Width, s.Height)
		}
		if v < l.MinMazeSize || v > l.MaxMazeSize {
			return s, fmt.Errorf("%w: %dx%d outside %d..%d", ErrInvalidSettings, s.Width, s.Height, l.MinMazeSize, l.MaxMazeSize)
		}
	}
	return s, nil
}

// Timing holds the room's timer durations.
type Timing struct {
	Countdown time.Duration
	WrapUp    time.Duration
	Grace     time.Duration
}

// DefaultTiming returns the standard 5s countdown, 20s wrap-up, 5s grace.
func DefaultTiming() Timing {
	return Timing{Countdown: defaultCountdown, WrapUp: defaultWrapUpTimeout, Grace: defaultGraceDelay}
}

// Limits bound room capacity and maze size.
type Limits struct {
	MaxPlayers  int
	MinMazeSize int
	MaxMazeSize int
}

func DefaultLimits() Limits {
	return Limits{MaxPlayers: defaultMaxPlayers, MinMazeSize: defaultMinMazeSize, MaxMazeSize: defaultMaxMazeSize}
}

// Member is a player's state inside one room.
type Member struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsMaster  bool   `json:"isMaster"`
	IsReady   bool   `json:"isReady"`
	Character string `json:"character,omitempty"`
}

// Finisher is one line of the race ranking.
type Finisher struct {
	ID         string `json:"id"`
	Rank       int    `json:"rank"`
	Nickname   string `json:"nickname"`
	FinishTime string `json:"finishTime"`
	ElapsedMs  int64  `json:"elapsedMs,omitempty"`
	Retired    bool   `json:"retired,omitempty"`
}

// Snapshot is the full room view sent with lobbyStateUpdate.
type Snapshot struct {
	ID                  string            `json:"id"`
	Settings            Settings          `json:"settings"`
	Players             map[string]Member `json:"players"`
	Order               []string          `json:"order"`
	MaxPlayers          int               `json:"maxPlayers"`
	Phase               Phase             `json:"phase"`
	GameStarted         bool              `json:"gameStarted"`
	GameEnded           bool              `json:"gameEnded"`
	ForceStartAvailable bool              `json:"forceStartAvailable"`
	PendingStart        string            `json:"pendingStart,omitempty"`
}

// Event is an outbound message addressed to a set of connections.
type Event struct {
	Name    string
	To      []string
	Payload any
}

type Countdown struct {
	Seconds int `json:"seconds"`
}

type MazeSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RaceData is the shared layout delivered when the countdown ends.
type RaceData struct {
	Maze     [][]int           `json:"maze"`
	StartPos maze.Position     `json:"startPos"`
	EndPos   maze.Position     `json:"endPos"`
	MazeSize MazeSize          `json:"mazeSize"`
	Players  map[string]Member `json:"players"`
}

type Movement struct {
	ID        string `json:"id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Character string `json:"character,omitempty"`
}

type Results struct {
	MazeSize string     `json:"mazeSize"`
	Rankings []Finisher `json:"rankings"`
}

type Closed struct {
	RoomID string `json:"roomId"`
}
