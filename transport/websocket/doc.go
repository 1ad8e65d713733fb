// Package websocket provides the WebSocket transport for the maze race server.
//
// The websocket package implements:
//   - One bidirectional event channel per browser connection
//   - A generated connection ID (UUID) per socket
//   - Targeted sends and broadcasts to every connection
//   - Keepalive with ping/pong and write deadlines
//   - Origin checks against a configured allow list
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// connections. Each client has a read goroutine, which forwards inbound events
// to the Handler, and a write goroutine, which drains the client's buffered
// send channel. The Hub's own goroutine only routes outbound messages and never
// calls into the Handler, so the Handler may block on its own work without
// stalling delivery.
//
// Message Protocol:
//
// Messages in both directions are JSON envelopes, one per text frame:
//
//	{"event": "joinGame", "data": {"roomId": "A1B2C3"}}
//
// Usage:
//
//	hub := websocket.NewHub(nil)
//	hub.SetHandler(server)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is registered under a new ID
// 2. Handler.Connected is called
// 3. Each inbound envelope is passed to Handler.Received
// 4. On close or read error the client is unregistered and
// Handler.Disconnected is called
//
// A client whose send buffer fills up is dropped.
package websocket
