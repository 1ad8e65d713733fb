// Package service runs the maze race session server.
//
// The service package implements:
//   - Decoding of inbound client events into a closed set of Command types
//   - A single dispatcher applying commands to rooms and the player registry
//   - Fan-out of room events to the addressed connections
//   - The live open-room list pushed to every connection when it changes
//   - Read queries for the REST API and operator tools
//
// Architecture:
//
// Server owns the session.Registry, the session.Directory and every
// lobby.Room. All mutation happens on the goroutine running Run: transport
// callbacks (Connected, Received, Disconnected), room timer fires and read
// queries are queued on one inbox and executed in arrival order. Commands are
// fire-and-forget; their outcome reaches clients as events through the
// Transport.
//
// Usage:
//
//	hub := websocket.NewHub(cfg.AllowedOrigins)
//	srv := service.NewServer(&service.Config{Transport: hub, Game: cfg})
//	hub.SetHandler(srv)
//
//	go hub.Run(ctx)
//	go srv.Run(ctx)
//
// Errors:
//
// Rejected commands never affect other players. Join failures are answered
// with joinError, other rejections with errorMessage, both sent only to the
// offending connection. Commands that reference a room the player is no
// longer in are dropped.
package service
