package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/wricardo/maze-race/game/lobby"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variable names.
const (
	EnvMaxPlayers        = "MAX_PLAYERS"
	EnvCountdownDelay    = "COUNTDOWN_DELAY"
	EnvWrapUpTimeout     = "WRAP_UP_TIMEOUT"
	EnvGraceDelay        = "GRACE_DELAY"
	EnvMinMazeSize       = "MIN_MAZE_SIZE"
	EnvMaxMazeSize       = "MAX_MAZE_SIZE"
	EnvDefaultMazeWidth  = "DEFAULT_MAZE_WIDTH"
	EnvDefaultMazeHeight = "DEFAULT_MAZE_HEIGHT"
	EnvPlacementAttempts = "PLACEMENT_ATTEMPTS"
	EnvAllowedOrigins    = "ALLOWED_ORIGINS"
)

// Config holds the server tunables
type Config struct {
	MaxPlayers        int           `json:"max_players"`
	CountdownDelay    time.Duration `json:"countdown_delay"`
	WrapUpTimeout     time.Duration `json:"wrap_up_timeout"`
	GraceDelay        time.Duration `json:"grace_delay"`
	MinMazeSize       int           `json:"min_maze_size"`
	MaxMazeSize       int           `json:"max_maze_size"`
	DefaultMazeWidth  int           `json:"default_maze_width"`
	DefaultMazeHeight int           `json:"default_maze_height"`
	PlacementAttempts int           `json:"placement_attempts"`

	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// Default returns the standard game tunables
func Default() *Config {
	limits := lobby.DefaultLimits()
	timing := lobby.DefaultTiming()
	settings := lobby.DefaultSettings()
	return &Config{
		MaxPlayers:        limits.MaxPlayers,
		CountdownDelay:    timing.Countdown,
		WrapUpTimeout:     timing.WrapUp,
		GraceDelay:        timing.Grace,
		MinMazeSize:       limits.MinMazeSize,
		MaxMazeSize:       limits.MaxMazeSize,
		DefaultMazeWidth:  settings.Width,
		DefaultMazeHeight: settings.Height,
		PlacementAttempts: 10,
	}
}

// Load builds a Config from the process environment, falling back to the
// given .env files and then to defaults. Process variables win over file
// values; missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	fileEnv := map[string]string{}
	for _, f := range envFiles {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, exists := fileEnv[k]; !exists {
				fileEnv[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	cfg := Default()
	var errs []error

	readInt := func(key string, dst *int) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := cast.ToIntE(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = v
	}
	readDuration := func(key string, dst *time.Duration) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := cast.ToDurationE(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = v
	}

	readInt(EnvMaxPlayers, &cfg.MaxPlayers)
	readDuration(EnvCountdownDelay, &cfg.CountdownDelay)
	readDuration(EnvWrapUpTimeout, &cfg.WrapUpTimeout)
	readDuration(EnvGraceDelay, &cfg.GraceDelay)
	readInt(EnvMinMazeSize, &cfg.MinMazeSize)
	readInt(EnvMaxMazeSize, &cfg.MaxMazeSize)
	readInt(EnvDefaultMazeWidth, &cfg.DefaultMazeWidth)
	readInt(EnvDefaultMazeHeight, &cfg.DefaultMazeHeight)
	readInt(EnvPlacementAttempts, &cfg.PlacementAttempts)

	if raw, ok := lookup(EnvAllowedOrigins); ok {
		cfg.AllowedOrigins = splitList(raw)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the tunables for values the game cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.MaxPlayers < 1 {
		problems = append(problems, "max players must be at least 1")
	}
	if c.CountdownDelay < 0 || c.WrapUpTimeout <= 0 || c.GraceDelay <= 0 {
		problems = append(problems, "timer durations must be positive")
	}
	if c.MinMazeSize < 1 || c.MinMazeSize > c.MaxMazeSize {
		problems = append(problems, fmt.Sprintf("maze size range %d..%d is empty", c.MinMazeSize, c.MaxMazeSize))
	}
	if c.PlacementAttempts < 1 {
		problems = append(problems, "placement attempts must be at least 1")
	}
	if _, err := c.DefaultSettings().Normalize(c.Limits()); err != nil {
		problems = append(problems, fmt.Sprintf("default maze: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Timing converts the durations for lobby rooms
func (c *Config) Timing() lobby.Timing {
	return lobby.Timing{Countdown: c.CountdownDelay, WrapUp: c.WrapUpTimeout, Grace: c.GraceDelay}
}

// Limits converts the capacity and size bounds for lobby rooms
func (c *Config) Limits() lobby.Limits {
	return lobby.Limits{MaxPlayers: c.MaxPlayers, MinMazeSize: c.MinMazeSize, MaxMazeSize: c.MaxMazeSize}
}

// DefaultSettings is what a room gets when createGame carries no size
func (c *Config) DefaultSettings() lobby.Settings {
	return lobby.Settings{Mode: lobby.SettingsModeCustom, Width: c.DefaultMazeWidth, Height: c.DefaultMazeHeight}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
