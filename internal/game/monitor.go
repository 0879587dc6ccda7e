package game

import (
	"time"

	"redblue/internal/presence"
)

// MonitorDisconnect watches one offline player. It checks at a tenth of
// the grace window and exits without side effects as soon as the player
// is back, the room is gone or not ongoing, or both sides dropped (those
// endings belong to other code paths). If the window elapses with
// exactly one side online it force-finishes the room, announcing the
// timeout and the final score exactly once.
func (g *Registry) MonitorDisconnect(room *Room, name string) {
	interval := g.window / 10
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if room.Terminated() {
			return
		}
		if g.Get(room.Code) != room {
			return
		}
		if room.State() != StateOngoing {
			return
		}
		at, ok := room.Tracker.DisconnectedAt(name)
		if !ok {
			// Stamp cleared: the player reconnected.
			return
		}
		if !room.ExactlyOneOnline() {
			return
		}
		if time.Since(at) <= g.window {
			continue
		}

		if !room.MarkTerminated() {
			return
		}
		room.Hub.Broadcast(presence.ServerMessage{Event: EvTimeout, Message: MsgGameTimeout})
		players := room.Players()
		scores := room.Scores()
		room.Hub.Broadcast(presence.ServerMessage{
			Event:   EvTimeoutScore,
			Players: players[:],
			Scores:  scores[:],
			Winner:  room.Winner(),
		})
		// The record survives as finished; only the live room goes away.
		g.Teardown(room, false)
		return
	}
}
