package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/wricardo/maze-race/game/lobby"
	"github.com/wricardo/maze-race/game/session"
)

// dispatch applies one command. It must only run on the server goroutine.
func (s *Server) dispatch(connID string, cmd Command) {
	if _, err := s.players.Get(connID); err != nil {
		log.Printf("Player %s: %s from unknown connection dropped", connID, cmd.Name())
		return
	}

	switch c := cmd.(type) {
	case SetNickname:
		s.setNickname(connID, c)
	case CreateGame:
		s.createGame(connID, c)
	case JoinGame:
		s.joinGame(connID, c)
	case LeaveRoom:
		s.leave(connID)
	case RequestRoomList:
		s.transport.Send(connID, EventRoomList, s.rooms.OpenRooms())
	case SelectCharacter:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.SelectCharacter(connID, c.Character)
		})
	case PlayerReady:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.SetReady(connID, c.IsReady)
		})
	case SettingsChanged:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.ChangeSettings(connID, c.Settings)
		})
	case StartGame:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.Start(connID)
		})
	case PlayerMovement:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.Move(connID, c.X, c.Y), nil
		})
	case PlayerFinished:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.Finish(connID, c.FinishTime)
		})
	case RequestRematch:
		s.inRoom(connID, cmd, func(r *lobby.Room) ([]lobby.Event, error) {
			return r.Reset(connID)
		})
	default:
		panic(fmt.Sprintf("service: unhandled command %T", cmd))
	}
}

// inRoom runs op against the player's room. Commands from players outside
// any room are dropped.
func (s *Server) inRoom(connID string, cmd Command, op func(*lobby.Room) ([]lobby.Event, error)) {
	room, ok := s.roomOf(connID)
	if !ok {
		log.Printf("Player %s: %s outside a room ignored", connID, cmd.Name())
		return
	}
	events, err := op(room)
	if err != nil {
		s.reject(connID, cmd, err)
		return
	}
	s.emit(events)
}

func (s *Server) setNickname(connID string, c SetNickname) {
	nickname, err := s.players.SetNickname(connID, c.Nickname)
	if err != nil {
		s.reject(connID, c, err)
		return
	}
	if room, ok := s.roomOf(connID); ok {
		s.emit(room.Rename(connID, nickname))
	}
}

func (s *Server) createGame(connID string, c CreateGame) {
	settings := c.Settings
	if settings.Mode == "" && settings.Width == 0 && settings.Height == 0 {
		settings = s.game.DefaultSettings()
	}
	settings, err := settings.Normalize(s.game.Limits())
	if err != nil {
		s.reject(connID, c, err)
		return
	}

	s.leave(connID)

	room, err := s.newRoom(settings)
	if err != nil {
		s.reject(connID, c, err)
		return
	}
	profile, _ := s.players.Get(connID)
	events, err := room.Join(connID, profile.Nickname)
	if err != nil {
		s.rooms.Delete(room.ID)
		s.reject(connID, c, err)
		return
	}
	s.rooms.Bind(connID, room.ID)
	log.Printf("Room %s created by %s (%s, rooms: %d)", room.ID, connID, settings.Mode, s.rooms.Count())

	s.transport.Send(connID, EventRoomCreated, RoomCreated{RoomID: room.ID, Room: room.Snapshot()})
	s.emit(events)
}

func (s *Server) joinGame(connID string, c JoinGame) {
	room, err := s.rooms.Get(c.RoomID)
	if err != nil {
		s.joinError(connID, err)
		return
	}
	if current, ok := s.rooms.RoomOf(connID); ok && current == room.ID {
		s.joinError(connID, lobby.ErrAlreadyMember)
		return
	}
	// check before leaving the current room so a failed join keeps it
	if !room.IsOpen() {
		s.joinError(connID, lobby.ErrAlreadyStarted)
		return
	}
	if room.MemberCount() >= room.MaxPlayers() {
		s.joinError(connID, lobby.ErrRoomFull)
		return
	}

	s.leave(connID)

	profile, _ := s.players.Get(connID)
	events, err := room.Join(connID, profile.Nickname)
	if err != nil {
		s.joinError(connID, err)
		return
	}
	s.rooms.Bind(connID, room.ID)
	log.Printf("Player %s joined room %s (%d/%d)", connID, room.ID, room.MemberCount(), room.MaxPlayers())

	s.transport.Send(connID, EventJoinSuccess, JoinSuccess{Room: room.Snapshot()})
	s.emit(events)
}

func (s *Server) joinError(connID string, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		msg = "Room not found"
	case errors.Is(err, lobby.ErrRoomFull):
		msg = "Room is full"
	case errors.Is(err, lobby.ErrAlreadyStarted):
		msg = "Game already started"
	case errors.Is(err, lobby.ErrAlreadyMember):
		msg = "Already in this room"
	}
	log.Printf("Player %s: join rejected: %v", connID, err)
	s.transport.Send(connID, EventJoinError, JoinError{Message: msg})
}
