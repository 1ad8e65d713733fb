// Package api provides the HTTP surface of the maze race server.
//
// The api package implements:
//   - A read-only REST view of rooms and server statistics
//   - The WebSocket upgrade endpoint used by game clients
//   - A health check
//   - Static file serving for the browser client
//
// Endpoints:
//
//   - GET /api/rooms - List rooms waiting in the lobby
//   - GET /api/rooms/{id} - Full snapshot of one room
//   - GET /api/stats - Connection, room and race counters
//   - GET /healthz - Liveness and connection count
//   - GET /ws - WebSocket upgrade
//
// All game actions travel over the WebSocket; the REST endpoints never
// mutate state.
//
// Usage:
//
//	srv := api.NewServer(sessionServer, hub)
//	http.ListenAndServe(":8080", srv)
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code:
//
//	{
//	  "error": "room not found"
//	}
package api
