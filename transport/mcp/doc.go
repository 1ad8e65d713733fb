// Package mcp exposes a read-only Model Context Protocol interface to the
// maze race server.
//
// The client does not hold any game state. Every tool call is proxied to
// the REST API and the JSON answer is rendered as text for the agent.
//
// MCP Tools:
//   - list_rooms: Rooms waiting in the lobby
//   - get_room: Members, phase and settings of one room
//   - server_stats: Connection, room and race counters
//   - game_instructions: Rules of rooms and races
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
