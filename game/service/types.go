package service

import (
	"errors"
	"time"

	"github.com/wricardo/maze-race/game/lobby"
)

var ErrServerStopped = errors.New("server stopped")

// Outbound event names owned by the server rather than a room.
const (
	EventRoomCreated  = "roomCreated"
	EventJoinSuccess  = "joinSuccess"
	EventJoinError    = "joinError"
	EventRoomList     = "roomListUpdate"
	EventErrorMessage = "errorMessage"
)

// Transport delivers outbound events to connections
type Transport interface {
	Send(connID, event string, data any)
	Broadcast(event string, data any)
}

type RoomCreated struct {
	RoomID string         `json:"roomId"`
	Room   lobby.Snapshot `json:"room"`
}

type JoinSuccess struct {
	Room lobby.Snapshot `json:"room"`
}

type JoinError struct {
	Message string `json:"message"`
}

// ErrorMessage tells a single client why its command was rejected.
type ErrorMessage struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

// Stats is the server overview served by the REST API
type Stats struct {
	Connections   int       `json:"connections"`
	Rooms         int       `json:"rooms"`
	OpenRooms     int       `json:"open_rooms"`
	RacingRooms   int       `json:"racing_rooms"`
	RoomsCreated  int       `json:"rooms_created"`
	RacesFinished int       `json:"races_finished"`
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
}
