package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker holds the reconnection state of one room: the token issued to
// each player and the moment each player last dropped. Tokens are minted
// once per (room, player) and stay stable across reconnects.
type Tracker struct {
	mu     sync.Mutex
	tokens map[string]string
	stamps map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		tokens: make(map[string]string),
		stamps: make(map[string]time.Time),
	}
}

// Token returns the reconnection token for name, minting one on first use.
func (t *Tracker) Token(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.tokens[name]
	if !ok {
		tok = uuid.NewString()
		t.tokens[name] = tok
	}
	return tok
}

// Validate reports whether token matches the one issued to name.
func (t *Tracker) Validate(name, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	issued, ok := t.tokens[name]
	return ok && issued == token
}

// StampDisconnect records when name dropped, starting its grace window.
func (t *Tracker) StampDisconnect(name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stamps[name] = at
}

// ClearStamp removes name's disconnect stamp after a successful reconnect.
func (t *Tracker) ClearStamp(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stamps, name)
}

// DisconnectedAt returns when name dropped, if it is currently offline.
func (t *Tracker) DisconnectedAt(name string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.stamps[name]
	return at, ok
}

// Expired reports whether name's grace window has fully elapsed. A player
// with no stamp on record has not expired.
func (t *Tracker) Expired(name string, window time.Duration, now time.Time) bool {
	at, ok := t.DisconnectedAt(name)
	return ok && now.Sub(at) > window
}

// Reset drops every token and stamp.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens = make(map[string]string)
	t.stamps = make(map[string]time.Time)
}
