package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/maze-race/game/lobby"
	"github.com/wricardo/maze-race/game/maze"
	"github.com/wricardo/maze-race/game/session"
)

const everyone = "*"

type message struct {
	to    string
	event string
	data  any
}

// recorder is a Transport that keeps every outbound message.
type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) Send(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{to: connID, event: event, data: data})
}

func (r *recorder) Broadcast(event string, data any) {
	r.Send(everyone, event, data)
}

// take returns and clears the recorded messages.
func (r *recorder) take() []message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs
	r.msgs = nil
	return msgs
}

func filter(msgs []message, to, event string) []message {
	var out []message
	for _, m := range msgs {
		if m.to == to && m.event == event {
			out = append(out, m)
		}
	}
	return out
}

func last(t *testing.T, msgs []message, to, event string) message {
	t.Helper()
	found := filter(msgs, to, event)
	if len(found) == 0 {
		t.Fatalf("Expected %s for %s, got %v", event, to, msgs)
	}
	return found[len(found)-1]
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) lobby.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, running due callbacks in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

type testServer struct {
	*Server
	t     *testing.T
	out   *recorder
	clock *fakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	out := &recorder{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	gen := maze.NewGenerator(rand.NewPCG(3, 5), maze.DefaultPlacementAttempts)
	srv := NewServer(&Config{
		Transport: out,
		Clock:     clock,
		NewMaze:   gen.Generate,
	})
	return &testServer{Server: srv, t: t, out: out, clock: clock}
}

func (ts *testServer) connect(ids ...string) {
	for _, id := range ids {
		ts.Connected(id)
	}
	ts.drain()
	ts.out.take()
}

func (ts *testServer) send(connID, event, data string) []message {
	ts.t.Helper()
	var raw json.RawMessage
	if data != "" {
		raw = json.RawMessage(data)
	}
	ts.Received(connID, event, raw)
	ts.drain()
	return ts.out.take()
}

func (ts *testServer) advance(d time.Duration) []message {
	ts.clock.Advance(d)
	ts.drain()
	return ts.out.take()
}

// createRoom has master create a default room and returns its id.
func (ts *testServer) createRoom(master string) string {
	ts.t.Helper()
	msgs := ts.send(master, CmdCreateGame, `{"mode":"custom","width":11,"height":11}`)
	return last(ts.t, msgs, master, EventRoomCreated).data.(RoomCreated).RoomID
}

func (ts *testServer) join(roomID string, ids ...string) {
	ts.t.Helper()
	for _, id := range ids {
		msgs := ts.send(id, CmdJoinGame, `{"roomId":"`+roomID+`"}`)
		last(ts.t, msgs, id, EventJoinSuccess)
	}
}

func (ts *testServer) room(id string) *lobby.Room {
	ts.t.Helper()
	room, err := ts.rooms.Get(id)
	if err != nil {
		ts.t.Fatalf("Room %s: %v", id, err)
	}
	return room
}

func TestServer_RaceScenario(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("M", "G1")

	msgs := ts.send("M", CmdCreateGame, `{"mode":"custom","width":11,"height":11}`)
	created := last(t, msgs, "M", EventRoomCreated).data.(RoomCreated)
	roomID := created.RoomID
	list := last(t, msgs, everyone, EventRoomList).data.([]session.RoomListing)
	if len(list) != 1 || list[0] != (session.RoomListing{ID: roomID, PlayerCount: 1, MaxPlayers: 4}) {
		t.Fatalf("Unexpected room list %+v", list)
	}

	msgs = ts.send("G1", CmdJoinGame, `{"roomId":"`+roomID+`"}`)
	last(t, msgs, "G1", EventJoinSuccess)
	last(t, msgs, "M", lobby.EventLobbyState)
	list = last(t, msgs, everyone, EventRoomList).data.([]session.RoomListing)
	if list[0].PlayerCount != 2 {
		t.Errorf("Expected 2 players in list, got %d", list[0].PlayerCount)
	}

	ts.send("M", CmdSelectCharacter, `{"character":"rabbit"}`)
	ts.send("G1", CmdSelectCharacter, `{"character":"turtle"}`)
	ts.send("G1", CmdPlayerReady, `{"isReady":true}`)

	// grace window elapses with nothing changing
	msgs = ts.advance(5 * time.Second)
	for _, id := range []string{"M", "G1"} {
		cd := last(t, msgs, id, lobby.EventCountdown).data.(lobby.Countdown)
		if cd.Seconds != 5 {
			t.Errorf("Expected 5 second countdown, got %d", cd.Seconds)
		}
	}
	list = last(t, msgs, everyone, EventRoomList).data.([]session.RoomListing)
	if len(list) != 0 {
		t.Errorf("Started room should leave the open list, got %+v", list)
	}

	msgs = ts.advance(5 * time.Second)
	dataM := last(t, msgs, "M", lobby.EventRaceData).data.(lobby.RaceData)
	dataG := last(t, msgs, "G1", lobby.EventRaceData).data.(lobby.RaceData)
	if !reflect.DeepEqual(dataM, dataG) {
		t.Error("Expected identical race data for every member")
	}
	if dataM.MazeSize != (lobby.MazeSize{Width: 11, Height: 11}) || len(dataM.Maze) != 11 {
		t.Errorf("Expected an 11x11 maze, got %+v", dataM.MazeSize)
	}

	msgs = ts.send("G1", CmdPlayerFinished, `{"finishTime":"00:07.12"}`)
	update := last(t, msgs, "M", lobby.EventRankingUpdate).data.([]lobby.Finisher)
	if len(update) != 1 || update[0].ID != "G1" || update[0].Rank != 1 || update[0].FinishTime != "00:07.12" {
		t.Errorf("Unexpected ranking update %+v", update)
	}

	msgs = ts.send("M", CmdPlayerFinished, `{"finishTime":"00:09.50"}`)
	for _, id := range []string{"M", "G1"} {
		res := last(t, msgs, id, lobby.EventGameOver).data.(lobby.Results)
		if len(res.Rankings) != 2 ||
			res.Rankings[0].ID != "G1" || res.Rankings[0].Rank != 1 ||
			res.Rankings[1].ID != "M" || res.Rankings[1].Rank != 2 {
			t.Errorf("Unexpected final rankings %+v", res.Rankings)
		}
	}

	msgs = ts.send("G1", CmdRequestRematch, "")
	snap := last(t, msgs, "M", lobby.EventReturnToLobby).data.(lobby.Snapshot)
	if snap.Phase != lobby.PhaseLobby {
		t.Errorf("Expected lobby after rematch, got %s", snap.Phase)
	}
	list = last(t, msgs, everyone, EventRoomList).data.([]session.RoomListing)
	if len(list) != 1 {
		t.Errorf("Room should be listed again after rematch, got %+v", list)
	}
}

func TestServer_JoinFullRoom(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("p1", "p2", "p3", "p4", "p5")
	roomID := ts.createRoom("p1")
	ts.join(roomID, "p2", "p3", "p4")

	msgs := ts.send("p5", CmdJoinGame, `{"roomId":"`+roomID+`"}`)
	joinErr := last(t, msgs, "p5", EventJoinError).data.(JoinError)
	if joinErr.Message != "Room is full" {
		t.Errorf("Expected 'Room is full', got '%s'", joinErr.Message)
	}
	if len(filter(msgs, "p1", lobby.EventLobbyState)) != 0 {
		t.Error("A rejected join must not notify the room")
	}
	if n := ts.room(roomID).MemberCount(); n != 4 {
		t.Errorf("Expected 4 members, got %d", n)
	}
}

func TestServer_JoinErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	roomID := ts.createRoom("m")

	msgs := ts.send("g", CmdJoinGame, `{"roomId":"ZZZZZZ"}`)
	if msg := last(t, msgs, "g", EventJoinError).data.(JoinError).Message; msg != "Room not found" {
		t.Errorf("Expected 'Room not found', got '%s'", msg)
	}

	msgs = ts.send("m", CmdJoinGame, `{"roomId":"`+roomID+`"}`)
	last(t, msgs, "m", EventJoinError)

	ts.send("m", CmdSelectCharacter, `{"character":"fox"}`)
	ts.send("m", CmdStartGame, "")
	msgs = ts.send("g", CmdJoinGame, `{"roomId":"`+roomID+`"}`)
	if msg := last(t, msgs, "g", EventJoinError).data.(JoinError).Message; msg != "Game already started" {
		t.Errorf("Expected 'Game already started', got '%s'", msg)
	}
}

func TestServer_LeaveWithoutRoomIsNoop(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("p1")

	if msgs := ts.send("p1", CmdLeaveRoom, ""); len(msgs) != 0 {
		t.Errorf("Expected no messages, got %v", msgs)
	}
	if msgs := ts.send("p1", CmdSelectCharacter, `{"character":"fox"}`); len(msgs) != 0 {
		t.Errorf("Room command outside a room should be dropped, got %v", msgs)
	}
}

func TestServer_DisconnectPromotesGuest(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	roomID := ts.createRoom("m")
	ts.join(roomID, "g")

	ts.Disconnected("m")
	ts.drain()
	msgs := ts.out.take()

	if left := last(t, msgs, "g", lobby.EventPlayerLeft).data.(string); left != "m" {
		t.Errorf("Expected playerDisconnected for m, got %s", left)
	}
	snap := last(t, msgs, "g", lobby.EventLobbyState).data.(lobby.Snapshot)
	if !snap.Players["g"].IsMaster || len(snap.Players) != 1 {
		t.Errorf("Expected g promoted to master, got %+v", snap.Players)
	}
	if _, err := ts.players.Get("m"); !errors.Is(err, session.ErrPlayerNotFound) {
		t.Error("Expected disconnected profile to be removed")
	}
}

func TestServer_LastLeaveDeletesRoom(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m")
	roomID := ts.createRoom("m")

	msgs := ts.send("m", CmdLeaveRoom, "")
	if _, err := ts.rooms.Get(roomID); !errors.Is(err, session.ErrRoomNotFound) {
		t.Errorf("Expected room to be deleted, got %v", err)
	}
	list := last(t, msgs, everyone, EventRoomList).data.([]session.RoomListing)
	if len(list) != 0 {
		t.Errorf("Expected empty room list, got %+v", list)
	}
	if _, ok := ts.rooms.RoomOf("m"); ok {
		t.Error("Expected binding to be cleared")
	}
}

func TestServer_CreateGameLeavesPreviousRoom(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	first := ts.createRoom("m")
	ts.join(first, "g")

	msgs := ts.send("g", CmdCreateGame, `{"mode":"preset","preset":"21"}`)
	second := last(t, msgs, "g", EventRoomCreated).data.(RoomCreated)
	if second.Room.Settings.Width != 21 || second.Room.Settings.Height != 21 {
		t.Errorf("Expected 21x21 room, got %+v", second.Room.Settings)
	}
	last(t, msgs, "m", lobby.EventPlayerLeft)
	if ts.room(first).MemberCount() != 1 {
		t.Errorf("Expected g to have left %s", first)
	}
}

func TestServer_SetNicknameRefreshesRoom(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	roomID := ts.createRoom("m")
	ts.join(roomID, "g")

	msgs := ts.send("g", CmdSetNickname, `{"nickname":"Speedy"}`)
	snap := last(t, msgs, "m", lobby.EventLobbyState).data.(lobby.Snapshot)
	if snap.Players["g"].Nickname != "Speedy" {
		t.Errorf("Expected refreshed nickname, got '%s'", snap.Players["g"].Nickname)
	}

	msgs = ts.send("g", CmdSetNickname, `{"nickname":""}`)
	last(t, msgs, "g", EventErrorMessage)
}

func TestServer_RejectionsAreTargeted(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	roomID := ts.createRoom("m")
	ts.join(roomID, "g")

	tests := []struct {
		name  string
		from  string
		event string
		data  string
	}{
		{"ready without character", "g", CmdPlayerReady, `{"isReady":true}`},
		{"settings by guest", "g", CmdSettingsChanged, `{"mode":"custom","width":21,"height":21}`},
		{"invalid settings", "m", CmdSettingsChanged, `{"mode":"custom","width":10,"height":21}`},
		{"start before ready", "m", CmdStartGame, ""},
		{"finish in lobby", "g", CmdPlayerFinished, `{"finishTime":"00:01.00"}`},
		{"unknown command", "g", "teleport", `{}`},
		{"malformed payload", "g", CmdPlayerReady, `{"isReady":"maybe"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := ts.send(tt.from, tt.event, tt.data)
			if len(msgs) != 1 || msgs[0].to != tt.from || msgs[0].event != EventErrorMessage {
				t.Fatalf("Expected a single errorMessage to %s, got %v", tt.from, msgs)
			}
		})
	}
}

func TestServer_MovementRelay(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g")
	roomID := ts.createRoom("m")
	ts.join(roomID, "g")
	ts.send("m", CmdSelectCharacter, `{"character":"fox"}`)

	msgs := ts.send("m", CmdPlayerMovement, `{"x":9,"y":3}`)
	if len(msgs) != 1 {
		t.Fatalf("Expected one relay, got %v", msgs)
	}
	mv := last(t, msgs, "g", lobby.EventPlayerMoved).data.(lobby.Movement)
	if mv != (lobby.Movement{ID: "m", X: 9, Y: 3, Character: "fox"}) {
		t.Errorf("Unexpected movement %+v", mv)
	}
}

func TestServer_WrapUpRetiresStragglers(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m", "g1", "g2")
	roomID := ts.createRoom("m")
	ts.join(roomID, "g1", "g2")
	ts.send("m", CmdSelectCharacter, `{"character":"fox"}`)
	for _, id := range []string{"g1", "g2"} {
		ts.send(id, CmdSelectCharacter, `{"character":"`+id+`"}`)
		ts.send(id, CmdPlayerReady, `{"isReady":true}`)
	}
	ts.send("m", CmdGameDataReady, `{"maze":[[1]],"startPos":{"x":0,"y":0}}`)
	ts.advance(5 * time.Second)

	ts.send("g2", CmdPlayerFinished, `{"finishTime":"00:04.00"}`)
	msgs := ts.advance(20 * time.Second)
	res := last(t, msgs, "m", lobby.EventGameOver).data.(lobby.Results)
	if len(res.Rankings) != 3 {
		t.Fatalf("Expected 3 rankings, got %+v", res.Rankings)
	}
	for _, f := range res.Rankings[1:] {
		if f.FinishTime != lobby.RetiredFinishTime {
			t.Errorf("Expected %s retired, got %+v", f.ID, f)
		}
	}
}

func TestServer_QueriesAndShutdown(t *testing.T) {
	ts := newTestServer(t)
	ts.connect("m")
	roomID := ts.createRoom("m")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- ts.Run(ctx) }()

	open, err := ts.OpenRooms(context.Background())
	if err != nil || len(open) != 1 || open[0].ID != roomID {
		t.Fatalf("Unexpected open rooms %+v %v", open, err)
	}

	snap, err := ts.RoomSnapshot(context.Background(), roomID)
	if err != nil {
		t.Fatalf("RoomSnapshot failed: %v", err)
	}
	if snap.ID != roomID || !snap.Players["m"].IsMaster {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if _, err := ts.RoomSnapshot(context.Background(), "NOPE00"); !errors.Is(err, session.ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}

	stats, err := ts.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Connections != 1 || stats.Rooms != 1 || stats.OpenRooms != 1 || stats.RoomsCreated != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	closed := last(t, ts.out.take(), "m", lobby.EventRoomClosed).data.(lobby.Closed)
	if closed.RoomID != roomID {
		t.Errorf("Expected roomClosed for %s, got %s", roomID, closed.RoomID)
	}
	if _, err := ts.Stats(context.Background()); !errors.Is(err, ErrServerStopped) {
		t.Errorf("Expected ErrServerStopped, got %v", err)
	}
}
