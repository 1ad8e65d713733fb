// Package session keeps the process-wide bookkeeping of the maze race server.
//
// The session package implements:
//   - A connection registry mapping each live connection to a player profile
//   - A room directory mapping room ids to lobby rooms
//   - The player to room binding used to route commands and disconnects
//   - The public listing of rooms that still accept joins
//
// Core Types:
//
// Registry holds one Profile per connection. A profile lives exactly as long
// as its connection and starts with a placeholder nickname derived from the
// connection id.
//
// Directory owns every lobby.Room. Rooms are deleted outright once their last
// member leaves.
//
// Room Identifiers:
//
// Rooms use 6-character uppercase hex ids generated from crypto/rand and
// checked against the rooms already in the directory. Lookups are
// case-insensitive so players can type the code in any case.
//
// Concurrency:
//
// Both types are safe for concurrent use. The rooms they hand out are not;
// the caller serializes every call into a lobby.Room.
//
// Usage:
//
//	dir := session.NewDirectory()
//
//	room, err := dir.Create(lobby.Options{Settings: settings})
//	if err != nil {
//		log.Fatal(err)
//	}
//	dir.Bind(playerID, room.ID)
//
//	// Rooms still in the lobby
//	open := dir.OpenRooms()
package session
