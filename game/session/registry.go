package session

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrInvalidNickname = errors.New("invalid nickname")
)

const maxNicknameLength = 20

// Profile is the per-connection player identity.
type Profile struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry maps live connections to player profiles
type Registry struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
	}
}

// Connect registers a connection with a placeholder nickname. Connecting an
// id twice returns the existing profile.
func (r *Registry) Connect(id string) Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[id]; ok {
		return *p
	}
	p := &Profile{
		ID:          id,
		Nickname:    DefaultNickname(id),
		ConnectedAt: time.Now(),
	}
	r.profiles[id] = p
	return *p
}

// Disconnect forgets a connection. Unknown ids are ignored.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
}

// SetNickname updates the nickname and returns the stored value
func (r *Registry) SetNickname(id, nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || len([]rune(nickname)) > maxNicknameLength {
		return "", ErrInvalidNickname
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return "", ErrPlayerNotFound
	}
	p.Nickname = nickname
	return nickname, nil
}

// Get returns a copy of the profile
func (r *Registry) Get(id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrPlayerNotFound
	}
	return *p, nil
}

// Count returns the number of connected players
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// DefaultNickname derives the placeholder nickname from a connection id.
func DefaultNickname(id string) string {
	tag := strings.ReplaceAll(id, "-", "")
	if len(tag) > 4 {
		tag = tag[:4]
	}
	return "Player-" + strings.ToUpper(tag)
}
