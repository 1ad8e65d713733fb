package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wricardo/maze-race/game/lobby"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomIDExhausted   = errors.New("could not allocate a room id")
)

const (
	roomIDBytes       = 3
	maxRoomIDAttempts = 32
)

// RoomListing is one entry of the public open-room list.
type RoomListing struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// Directory owns every room and the player to room binding
type Directory struct {
	rooms       map[string]*lobby.Room
	playerRooms map[string]string
	mu          sync.RWMutex
}

// NewDirectory creates an empty room directory
func NewDirectory() *Directory {
	return &Directory{
		rooms:       make(map[string]*lobby.Room),
		playerRooms: make(map[string]string),
	}
}

// Create builds a room from opts. An empty opts.ID gets a generated,
// collision-checked id.
func (d *Directory) Create(opts lobby.Options) (*lobby.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if opts.ID == "" {
		id, err := d.generateRoomID()
		if err != nil {
			return nil, err
		}
		opts.ID = id
	} else {
		opts.ID = normalizeID(opts.ID)
		if d.roomExists(opts.ID) {
			return nil, ErrRoomAlreadyExists
		}
	}

	room := lobby.New(opts)
	d.rooms[room.ID] = room
	return room, nil
}

// Get retrieves a room by id (case-insensitive)
func (d *Directory) Get(id string) (*lobby.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[normalizeID(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Delete removes a room and every binding that points at it
func (d *Directory) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id = normalizeID(id)
	if !d.roomExists(id) {
		return ErrRoomNotFound
	}
	delete(d.rooms, id)
	for player, room := range d.playerRooms {
		if room == id {
			delete(d.playerRooms, player)
		}
	}
	return nil
}

// Bind records that a player is in a room
func (d *Directory) Bind(playerID, roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playerRooms[playerID] = normalizeID(roomID)
}

// Unbind clears the player's room, returning the room it was bound to
func (d *Directory) Unbind(playerID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	roomID, ok := d.playerRooms[playerID]
	delete(d.playerRooms, playerID)
	return roomID, ok
}

// RoomOf returns the room a player is bound to
func (d *Directory) RoomOf(playerID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roomID, ok := d.playerRooms[playerID]
	return roomID, ok
}

// OpenRooms lists the rooms that still accept joins, sorted by id
func (d *Directory) OpenRooms() []RoomListing {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]RoomListing, 0, len(d.rooms))
	for id, room := range d.rooms {
		if !room.IsOpen() {
			continue
		}
		result = append(result, RoomListing{
			ID:          id,
			PlayerCount: room.MemberCount(),
			MaxPlayers:  room.MaxPlayers(),
		})
	}
	slices.SortFunc(result, func(a, b RoomListing) int { return strings.Compare(a.ID, b.ID) })
	return result
}

// List returns all rooms sorted by id
func (d *Directory) List() []*lobby.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*lobby.Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		result = append(result, room)
	}
	slices.SortFunc(result, func(a, b *lobby.Room) int { return strings.Compare(a.ID, b.ID) })
	return result
}

// Count returns the number of rooms
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// generateRoomID returns a 6-character uppercase hex id not yet in use.
// Callers must hold the write lock.
func (d *Directory) generateRoomID() (string, error) {
	bytes := make([]byte, roomIDBytes)
	for range maxRoomIDAttempts {
		if _, err := rand.Read(bytes); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		id := strings.ToUpper(hex.EncodeToString(bytes))
		if !d.roomExists(id) {
			return id, nil
		}
	}
	return "", ErrRoomIDExhausted
}

func (d *Directory) roomExists(id string) bool {
	_, exists := d.rooms[id]
	return exists
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
