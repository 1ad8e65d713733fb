package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/wricardo/maze-race/game/lobby"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMalformedCommand = errors.New("malformed command")
)

// Inbound event names.
const (
	CmdSetNickname     = "setNickname"
	CmdCreateGame      = "createGame"
	CmdJoinGame        = "joinGame"
	CmdLeaveRoom       = "leaveRoom"
	CmdRequestRoomList = "requestRoomList"
	CmdSelectCharacter = "selectCharacter"
	CmdPlayerReady     = "playerReady"
	CmdSettingsChanged = "settingsChanged"
	CmdGameDataReady   = "gameDataReady"
	CmdStartGame       = "startGame"
	CmdPlayerMovement  = "playerMovement"
	CmdPlayerFinished  = "playerFinished"
	CmdRequestRematch  = "requestRematch"
)

// Command is a decoded client request. The concrete types below are the
// only implementations.
type Command interface {
	Name() string
}

type SetNickname struct{ Nickname string }

type CreateGame struct{ Settings lobby.Settings }

type JoinGame struct{ RoomID string }

type LeaveRoom struct{}

type RequestRoomList struct{}

type SelectCharacter struct{ Character string }

type PlayerReady struct{ IsReady bool }

type SettingsChanged struct{ Settings lobby.Settings }

// StartGame is sent by the master as gameDataReady or startGame. Any maze
// the client attaches is ignored; the server generates its own.
type StartGame struct{}

type PlayerMovement struct{ X, Y int }

type PlayerFinished struct{ FinishTime string }

type RequestRematch struct{}

func (SetNickname) Name() string     { return CmdSetNickname }
func (CreateGame) Name() string      { return CmdCreateGame }
func (JoinGame) Name() string        { return CmdJoinGame }
func (LeaveRoom) Name() string       { return CmdLeaveRoom }
func (RequestRoomList) Name() string { return CmdRequestRoomList }
func (SelectCharacter) Name() string { return CmdSelectCharacter }
func (PlayerReady) Name() string     { return CmdPlayerReady }
func (SettingsChanged) Name() string { return CmdSettingsChanged }
func (StartGame) Name() string       { return CmdStartGame }
func (PlayerMovement) Name() string  { return CmdPlayerMovement }
func (PlayerFinished) Name() string  { return CmdPlayerFinished }
func (RequestRematch) Name() string  { return CmdRequestRematch }

// wireSettings accepts sizes as numbers, numeric strings or null, the way
// browser forms send them.
type wireSettings struct {
	Mode   string `json:"mode"`
	Preset any    `json:"preset"`
	Width  any    `json:"width"`
	Height any    `json:"height"`
}

func (w wireSettings) settings() (lobby.Settings, error) {
	preset, err := cast.ToStringE(w.Preset)
	if err != nil {
		return lobby.Settings{}, fmt.Errorf("preset: %w", err)
	}
	width, err := cast.ToIntE(w.Width)
	if err != nil {
		return lobby.Settings{}, fmt.Errorf("width: %w", err)
	}
	height, err := cast.ToIntE(w.Height)
	if err != nil {
		return lobby.Settings{}, fmt.Errorf("height: %w", err)
	}
	return lobby.Settings{Mode: w.Mode, Preset: preset, Width: width, Height: height}, nil
}

// DecodeCommand maps an inbound event and its raw JSON data to a Command.
func DecodeCommand(event string, raw json.RawMessage) (Command, error) {
	var (
		cmd Command
		err error
	)

	switch event {
	case CmdSetNickname:
		var p struct {
			Nickname string `json:"nickname"`
		}
		err = unmarshal(raw, &p)
		cmd = SetNickname{Nickname: p.Nickname}

	case CmdCreateGame, CmdSettingsChanged:
		var p wireSettings
		if err = unmarshal(raw, &p); err != nil {
			break
		}
		var s lobby.Settings
		if s, err = p.settings(); err != nil {
			break
		}
		if event == CmdCreateGame {
			cmd = CreateGame{Settings: s}
		} else {
			cmd = SettingsChanged{Settings: s}
		}

	case CmdJoinGame:
		var p struct {
			RoomID string `json:"roomId"`
		}
		err = unmarshal(raw, &p)
		cmd = JoinGame{RoomID: p.RoomID}

	case CmdLeaveRoom:
		cmd = LeaveRoom{}

	case CmdRequestRoomList:
		cmd = RequestRoomList{}

	case CmdSelectCharacter:
		var p struct {
			Character string `json:"character"`
		}
		err = unmarshal(raw, &p)
		cmd = SelectCharacter{Character: p.Character}

	case CmdPlayerReady:
		var p struct {
			IsReady bool `json:"isReady"`
		}
		err = unmarshal(raw, &p)
		cmd = PlayerReady{IsReady: p.IsReady}

	case CmdGameDataReady, CmdStartGame:
		cmd = StartGame{}

	case CmdPlayerMovement:
		var p struct {
			X any `json:"x"`
			Y any `json:"y"`
		}
		if err = unmarshal(raw, &p); err != nil {
			break
		}
		var x, y int
		if x, err = cast.ToIntE(p.X); err != nil {
			break
		}
		if y, err = cast.ToIntE(p.Y); err != nil {
			break
		}
		cmd = PlayerMovement{X: x, Y: y}

	case CmdPlayerFinished:
		var p struct {
			FinishTime any `json:"finishTime"`
		}
		if err = unmarshal(raw, &p); err != nil {
			break
		}
		var ft string
		ft, err = cast.ToStringE(p.FinishTime)
		cmd = PlayerFinished{FinishTime: ft}

	case CmdRequestRematch:
		cmd = RequestRematch{}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, event)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, event, err)
	}
	return cmd, nil
}

// unmarshal treats missing data as an empty object.
func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
