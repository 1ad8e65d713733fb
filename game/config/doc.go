// Package config loads the maze race server tunables.
//
// Values come from the process environment, then from optional .env files,
// then from built-in defaults:
//   - MAX_PLAYERS: room capacity (4)
//   - COUNTDOWN_DELAY: delay between start and maze delivery (5s)
//   - WRAP_UP_TIMEOUT: time the field has after the first finisher (20s)
//   - GRACE_DELAY: quiet period before an auto or force start (5s)
//   - MIN_MAZE_SIZE, MAX_MAZE_SIZE: accepted side lengths (7..151)
//   - DEFAULT_MAZE_WIDTH, DEFAULT_MAZE_HEIGHT: size of a new room (11x11)
//   - PLACEMENT_ATTEMPTS: start/end placements tried per maze (10)
//   - ALLOWED_ORIGINS: comma separated websocket origins, empty for any
//
// Durations take Go duration syntax ("5s", "1m30s").
//
// Usage:
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//		log.Fatal(err)
//	}
//	room := lobby.New(lobby.Options{Timing: cfg.Timing(), Limits: cfg.Limits()})
package config
