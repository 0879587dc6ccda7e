package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// StatusRejected is the abnormal close code used for every handshake
// rejection path (not found, full, wrong state, bad or expired token).
const StatusRejected = websocket.StatusUnsupportedData

// Registry owns every live room. All lookups and lifecycle operations go
// through it; nothing else holds the room table.
type Registry struct {
	store      MatchStore
	window     time.Duration
	chatRounds []int

	mu    sync.Mutex
	rooms map[string]*Room

	genCode  func() (string, error)
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(store MatchStore, window time.Duration, chatRounds []int) *Registry {
	g := &Registry{
		store:      store,
		window:     window,
		chatRounds: chatRounds,
		rooms:      make(map[string]*Room),
		genCode:    GenerateCode,
		stop:       make(chan struct{}),
	}
	go g.sweepFinished()
	return g
}

// Close stops the background sweeper. Safe to call more than once; live
// rooms are left untouched.
func (g *Registry) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Window returns the reconnect grace window.
func (g *Registry) Window() time.Duration {
	return g.window
}

// Store exposes the persistence collaborator for the thin REST handlers.
func (g *Registry) Store() MatchStore {
	return g.store
}

// CreateRoom generates a unique 7-digit code, persists a created record
// and registers the room runtime. No player is assigned yet.
func (g *Registry) CreateRoom() (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Try up to 10 times to generate a unique code
	for range 10 {
		code, err := g.genCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := g.rooms[code]; exists {
			continue
		}
		if _, err := g.store.GetByCode(code); err == nil {
			continue
		}

		room := newRoom(code, uuid.NewString(), g.store, g.chatRounds)
		if err := g.store.Create(room.Record()); err != nil {
			return nil, fmt.Errorf("persisting room %s: %w", code, err)
		}
		g.rooms[code] = room
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
}

// Get returns the room regardless of state, or nil.
func (g *Registry) Get(code string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms[code]
}

// Delete removes the registry entry. Idempotent; only removes the exact
// room instance so a concurrent recreate is never clobbered.
func (g *Registry) Delete(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[room.Code] == room {
		delete(g.rooms, room.Code)
	}
}

// flushDelay gives write pumps a moment to drain final events before
// their connections are closed under them.
func flushDelay() {
	time.Sleep(200 * time.Millisecond)
}

// Teardown closes every connection and purges the room. When
// deleteRecord is set the durable record goes too (normal and forfeit
// endings); timeout endings keep the finished record around.
func (g *Registry) Teardown(room *Room, deleteRecord bool) {
	flushDelay()
	room.Hub.DisconnectAll(websocket.StatusNormalClosure, "Game Over")
	room.ChatHub.DisconnectAll(websocket.StatusNormalClosure, "Game Over")
	g.Delete(room)
	if deleteRecord {
		if err := g.store.Delete(room.Code); err != nil {
			log.Printf("[Registry] deleting record %s: %v\n", room.Code, err)
		}
	}
}

// ResetRoom restores a match to its initial created state. Debug only.
func (g *Registry) ResetRoom(code string) error {
	if room := g.Get(code); room != nil {
		room.Hub.DisconnectAll(websocket.StatusNormalClosure, "Game state reset")
		room.ChatHub.DisconnectAll(websocket.StatusNormalClosure, "Game state reset")
		room.Reset()
		return nil
	}
	rec, err := g.store.GetByCode(code)
	if err != nil {
		return err
	}
	return g.store.Save(MatchRecord{ID: rec.ID, Code: rec.Code, Round: 1, State: StateCreated})
}

const staleTTL = 1 * time.Hour

// sweepFinished drops rooms nobody will come back to: finished rooms
// whose connections are all gone (double-disconnect leaves nobody to
// tear down) and created rooms that sat empty past the stale TTL.
func (g *Registry) sweepFinished() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
		}
		g.mu.Lock()
		now := time.Now()
		for code, room := range g.rooms {
			if room.Hub.Count() > 0 || room.ChatHub.Count() > 0 {
				continue
			}
			switch room.State() {
			case StateFinished:
				delete(g.rooms, code)
			case StateCreated:
				if now.Sub(room.CreatedAt) > staleTTL {
					delete(g.rooms, code)
				}
			}
		}
		g.mu.Unlock()
	}
}
