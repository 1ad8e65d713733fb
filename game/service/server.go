package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/wricardo/maze-race/game/config"
	"github.com/wricardo/maze-race/game/lobby"
	"github.com/wricardo/maze-race/game/maze"
	"github.com/wricardo/maze-race/game/session"
)

const defaultInboxSize = 1024

// Config wires a Server. Only Transport is required.
type Config struct {
	Transport Transport
	Game      *config.Config
	Clock     lobby.Clock
	NewMaze   lobby.MazeFunc
	Players   *session.Registry
	Rooms     *session.Directory
	InboxSize int
}

// Server is the single authority over players and rooms. Every mutation runs
// on the goroutine executing Run; the exported methods only enqueue work.
type Server struct {
	transport Transport
	game      *config.Config
	clock     lobby.Clock
	newMaze   lobby.MazeFunc
	players   *session.Registry
	rooms     *session.Directory

	inbox chan func()
	done  chan struct{}

	// last open-room list pushed to every connection
	lastOpen []session.RoomListing

	startedAt     time.Time
	roomsCreated  int
	racesFinished int
}

// NewServer creates a server. Call Run to start processing.
func NewServer(cfg *Config) *Server {
	s := &Server{
		transport: cfg.Transport,
		game:      cfg.Game,
		clock:     cfg.Clock,
		newMaze:   cfg.NewMaze,
		players:   cfg.Players,
		rooms:     cfg.Rooms,
		done:      make(chan struct{}),
	}
	if s.game == nil {
		s.game = config.Default()
	}
	if s.clock == nil {
		s.clock = lobby.SystemClock()
	}
	if s.newMaze == nil {
		attempts := s.game.PlacementAttempts
		s.newMaze = func(width, height int) (*maze.Maze, error) {
			g := maze.NewGenerator(rand.NewPCG(rand.Uint64(), rand.Uint64()), attempts)
			return g.Generate(width, height)
		}
	}
	if s.players == nil {
		s.players = session.NewRegistry()
	}
	if s.rooms == nil {
		s.rooms = session.NewDirectory()
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	s.inbox = make(chan func(), size)
	s.startedAt = s.clock.Now()
	return s
}

// Run processes queued work until ctx is cancelled, then closes every room.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("Session server started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case fn := <-s.inbox:
			s.handle(fn)
		}
	}
}

func (s *Server) handle(fn func()) {
	fn()
	s.publishOpenRooms()
}

// drain runs everything already queued. Used when the caller owns the loop.
func (s *Server) drain() {
	for {
		select {
		case fn := <-s.inbox:
			s.handle(fn)
		default:
			return
		}
	}
}

func (s *Server) enqueue(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) shutdown() {
	for _, room := range s.rooms.List() {
		s.emit(room.Close())
		s.rooms.Delete(room.ID)
	}
	close(s.done)
	log.Printf("Session server stopped")
}

// Connected registers a new connection and sends it the open-room list.
func (s *Server) Connected(connID string) {
	s.enqueue(func() {
		p := s.players.Connect(connID)
		log.Printf("Player %s connected as %s (total players: %d)", connID, p.Nickname, s.players.Count())
		s.transport.Send(connID, EventRoomList, s.rooms.OpenRooms())
	})
}

// Received decodes an inbound event and queues it for dispatch.
func (s *Server) Received(connID, event string, data json.RawMessage) {
	cmd, err := DecodeCommand(event, data)
	if err != nil {
		log.Printf("Player %s: dropped %q: %v", connID, event, err)
		s.enqueue(func() {
			s.transport.Send(connID, EventErrorMessage, ErrorMessage{Command: event, Message: err.Error()})
		})
		return
	}
	s.Submit(connID, cmd)
}

// Disconnected runs the same path as an explicit leave, then forgets the
// player.
func (s *Server) Disconnected(connID string) {
	s.enqueue(func() {
		s.leave(connID)
		s.players.Disconnect(connID)
		log.Printf("Player %s disconnected (remaining players: %d)", connID, s.players.Count())
	})
}

// Submit queues an already decoded command.
func (s *Server) Submit(connID string, cmd Command) {
	s.enqueue(func() { s.dispatch(connID, cmd) })
}

// OpenRooms returns the rooms that still accept joins.
func (s *Server) OpenRooms(ctx context.Context) ([]session.RoomListing, error) {
	return query(ctx, s, func() ([]session.RoomListing, error) {
		return s.rooms.OpenRooms(), nil
	})
}

// RoomSnapshot returns the full view of one room.
func (s *Server) RoomSnapshot(ctx context.Context, roomID string) (*lobby.Snapshot, error) {
	return query(ctx, s, func() (*lobby.Snapshot, error) {
		room, err := s.rooms.Get(roomID)
		if err != nil {
			return nil, err
		}
		snap := room.Snapshot()
		return &snap, nil
	})
}

// Stats summarizes the server.
func (s *Server) Stats(ctx context.Context) (*Stats, error) {
	return query(ctx, s, func() (*Stats, error) {
		st := &Stats{
			Connections:   s.players.Count(),
			Rooms:         s.rooms.Count(),
			OpenRooms:     len(s.rooms.OpenRooms()),
			RoomsCreated:  s.roomsCreated,
			RacesFinished: s.racesFinished,
			StartedAt:     s.startedAt,
			Uptime:        s.clock.Now().Sub(s.startedAt).Round(time.Second).String(),
		}
		for _, room := range s.rooms.List() {
			if room.Phase() == lobby.PhaseRacing {
				st.RacingRooms++
			}
		}
		return st, nil
	})
}

// query runs fn on the server goroutine and waits for its result.
func query[T any](ctx context.Context, s *Server, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	reply := make(chan result, 1)
	var zero T

	select {
	case s.inbox <- func() {
		v, err := fn()
		reply <- result{v, err}
	}:
	case <-s.done:
		return zero, ErrServerStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.v, r.err
	case <-s.done:
		return zero, ErrServerStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// onTimer is handed to every room; it runs on the timer goroutine.
func (s *Server) onTimer(roomID string, kind lobby.TimerKind, gen uint64) {
	s.enqueue(func() {
		room, err := s.rooms.Get(roomID)
		if err != nil {
			return
		}
		s.emit(room.Fire(kind, gen))
	})
}

func (s *Server) emit(events []lobby.Event) {
	for _, ev := range events {
		if ev.Name == lobby.EventGameOver {
			s.racesFinished++
		}
		for _, to := range ev.To {
			s.transport.Send(to, ev.Name, ev.Payload)
		}
	}
}

// publishOpenRooms pushes the open-room list to every connection when it
// differs from the last one pushed.
func (s *Server) publishOpenRooms() {
	open := s.rooms.OpenRooms()
	if slices.Equal(open, s.lastOpen) {
		return
	}
	s.lastOpen = open
	s.transport.Broadcast(EventRoomList, open)
}

func (s *Server) reject(connID string, cmd Command, err error) {
	log.Printf("Player %s: %s rejected: %v", connID, cmd.Name(), err)
	s.transport.Send(connID, EventErrorMessage, ErrorMessage{Command: cmd.Name(), Message: err.Error()})
}

func (s *Server) roomOf(connID string) (*lobby.Room, bool) {
	roomID, ok := s.rooms.RoomOf(connID)
	if !ok {
		return nil, false
	}
	room, err := s.rooms.Get(roomID)
	if err != nil {
		s.rooms.Unbind(connID)
		return nil, false
	}
	return room, true
}

func (s *Server) newRoom(settings lobby.Settings) (*lobby.Room, error) {
	room, err := s.rooms.Create(lobby.Options{
		Settings: settings,
		Timing:   s.game.Timing(),
		Limits:   s.game.Limits(),
		Clock:    s.clock,
		NewMaze:  s.newMaze,
		OnTimer:  s.onTimer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	s.roomsCreated++
	return room, nil
}

// leave removes the player from its room, dropping the room once empty.
// A player in no room is a no-op.
func (s *Server) leave(connID string) {
	roomID, ok := s.rooms.Unbind(connID)
	if !ok {
		return
	}
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return
	}

	events, empty := room.Leave(connID)
	s.emit(events)
	if empty {
		if err := s.rooms.Delete(roomID); err != nil && !errors.Is(err, session.ErrRoomNotFound) {
			log.Printf("Room %s: delete failed: %v", roomID, err)
		}
		log.Printf("Room %s closed (rooms: %d)", roomID, s.rooms.Count())
	}
}
