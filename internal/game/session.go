package game

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"redblue/internal/presence"
	"redblue/internal/scoring"

	"github.com/coder/websocket"
)

// stepResult is the outcome of one blocking phase of the session loop.
type stepResult int

const (
	stepOK       stepResult = iota // proceed with the round
	stepFinished                   // match ended out-of-band, run termination
	stepGone                       // this participant left, exit silently
)

// Session drives one player's connection through a match: join/waiting,
// the ten-round loop, chat consent, forfeit and disconnect handling.
type Session struct {
	reg    *Registry
	room   *Room
	client *presence.Client
	inbox  <-chan presence.ClientMessage
}

// NewSession wires a session for a registered, validated connection.
// inbox carries decoded client messages and closes on transport loss.
func NewSession(reg *Registry, room *Room, client *presence.Client, inbox <-chan presence.ClientMessage) *Session {
	return &Session{reg: reg, room: room, client: client, inbox: inbox}
}

// Run blocks until the match ends or this participant leaves.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Room %s] session %s: panic: %v\n", s.room.Code, s.client.Name, p)
			s.client.Queue(presence.ServerMessage{Error: "internal server error"})
			s.closeConn(websocket.StatusInternalError, "internal error")
			s.handleAbruptDisconnect()
		}
	}()

	if !s.room.BothJoined() {
		s.client.Queue(presence.ServerMessage{Event: EvJoinWaiting, Message: MsgWaitingForJoin})
		switch s.waitForOpponent(ctx) {
		case stepGone:
			return
		case stepFinished:
			s.terminate()
			return
		}
	}
	s.room.Activate()

	for {
		if s.room.State() != StateOngoing {
			break
		}
		r := s.room.Round()
		if r > scoring.MaxRounds {
			break
		}

		if s.room.ChatEligible(r) {
			switch s.runChatConsent(ctx, r) {
			case stepGone:
				return
			case stepFinished:
				s.terminate()
				return
			}
		}

		s.client.Queue(presence.ServerMessage{
			Event:   EvRoundStart,
			Round:   r,
			Message: fmt.Sprintf("Round %d has started. Awaiting user input.", r),
		})

		if !s.room.Done(s.client.Name) {
			switch s.collectChoice(ctx) {
			case stepGone:
				return
			case stepFinished:
				s.terminate()
				return
			}
		}

		switch s.waitRoundAdvance(ctx, r) {
		case stepGone:
			return
		case stepFinished:
			s.client.Queue(presence.ServerMessage{Event: EvUnexpectedFinish, Message: MsgUnexpectedFinish})
			s.terminate()
			return
		}

		if scores, choices, ok := s.room.RoundResult(r); ok {
			s.client.Queue(presence.ServerMessage{
				Event:   EvRoundOver,
				Round:   r,
				Scores:  scores[:],
				Choices: []string{strconv.Itoa(choices[0]), strconv.Itoa(choices[1])},
			})
		}
	}

	s.terminate()
}

// waitForOpponent parks the first joiner until the room fills up.
func (s *Session) waitForOpponent(ctx context.Context) stepResult {
	for {
		ch := s.room.Changed()
		if s.room.BothJoined() {
			return stepOK
		}
		if s.room.State() == StateFinished {
			return stepFinished
		}
		select {
		case <-ctx.Done():
			s.handleAbruptDisconnect()
			return stepGone
		case msg, ok := <-s.inbox:
			if !ok {
				s.handleAbruptDisconnect()
				return stepGone
			}
			if msg.Event == EvDisconnect {
				s.gracefulDisconnect()
				return stepGone
			}
			s.client.Queue(presence.ServerMessage{Event: EvMalformedRequest, Error: MsgUnknownEvent})
		case <-ch:
		}
	}
}

// collectChoice blocks on the player's next intent for this round.
// Malformed input is answered in-band and never ends the session.
func (s *Session) collectChoice(ctx context.Context) stepResult {
	for {
		ch := s.room.Changed()
		if s.room.State() == StateFinished {
			return stepFinished
		}
		select {
		case <-ctx.Done():
			s.handleAbruptDisconnect()
			return stepGone
		case msg, ok := <-s.inbox:
			if !ok {
				s.handleAbruptDisconnect()
				return stepGone
			}
			switch msg.Event {
			case EvChoice:
				c, err := strconv.Atoi(msg.Content)
				if err != nil || (c != 0 && c != 1) {
					s.client.Queue(presence.ServerMessage{Event: EvIncorrectFormat, Error: MsgInvalidChoice})
					continue
				}
				s.room.SubmitChoice(s.client.Name, c)
				return stepOK
			case EvForfeit:
				s.forfeit()
				return stepFinished
			case EvDisconnect:
				s.gracefulDisconnect()
				return stepGone
			default:
				s.client.Queue(presence.ServerMessage{Event: EvMalformedRequest, Error: MsgUnknownEvent})
			}
		case <-ch:
		}
	}
}

// waitRoundAdvance parks until the opponent's choice lands and the round
// counter moves past r, or the match finishes out-of-band.
func (s *Session) waitRoundAdvance(ctx context.Context, r int) stepResult {
	notified := false
	for {
		ch := s.room.Changed()
		if s.room.Round() > r {
			return stepOK
		}
		if s.room.State() == StateFinished {
			return stepFinished
		}
		if !notified {
			notified = true
			if peer := s.peerName(); peer != "" && !s.room.Online(peer) {
				s.client.Queue(presence.ServerMessage{Event: EvRoundWaitingOffline, Message: MsgPeerDisconnected})
			} else {
				s.client.Queue(presence.ServerMessage{Event: EvRoundWaiting, Message: MsgWaitingForPeer})
			}
		}
		select {
		case <-ctx.Done():
			s.handleAbruptDisconnect()
			return stepGone
		case msg, ok := <-s.inbox:
			if !ok {
				s.handleAbruptDisconnect()
				return stepGone
			}
			switch msg.Event {
			case EvForfeit:
				s.forfeit()
				return stepFinished
			case EvDisconnect:
				s.gracefulDisconnect()
				return stepGone
			case EvChoice:
				s.client.Queue(presence.ServerMessage{Event: EvRoundWaiting, Message: MsgWaitingForPeer})
			default:
				s.client.Queue(presence.ServerMessage{Event: EvMalformedRequest, Error: MsgUnknownEvent})
			}
		case <-ch:
		}
	}
}

// runChatConsent solicits this player's answer to the chat offer of
// round r and, on mutual accept, holds the game until the chat ends.
func (s *Session) runChatConsent(ctx context.Context, r int) stepResult {
	s.client.Queue(presence.ServerMessage{Event: EvChatPossibility, Round: r, Message: MsgChatOffer})
	for {
		ch := s.room.Changed()
		if resolved, accepted := s.room.ChatResolution(r); resolved {
			if accepted {
				return s.holdForChat(ctx)
			}
			return stepOK
		}
		if s.room.State() == StateFinished {
			return stepFinished
		}
		select {
		case <-ctx.Done():
			s.handleAbruptDisconnect()
			return stepGone
		case msg, ok := <-s.inbox:
			if !ok {
				s.handleAbruptDisconnect()
				return stepGone
			}
			switch msg.Event {
			case EvChatAccept, EvChatDecline:
				accepted := msg.Event == EvChatAccept
				answer := EvChatDeclined
				if accepted {
					answer = EvChatAccepted
				}
				s.room.Hub.Broadcast(presence.ServerMessage{Event: answer, From: s.client.Name})
				resolved, both, resolver := s.room.SetConsent(s.client.Name, accepted, r)
				if resolved && resolver {
					if both {
						s.room.Hub.Broadcast(presence.ServerMessage{Event: EvChatStart, Round: r})
						s.room.Hub.Broadcast(presence.ServerMessage{Event: EvHold, Message: MsgGameHold})
						return s.holdForChat(ctx)
					}
					return stepOK
				}
			case EvForfeit:
				s.forfeit()
				return stepFinished
			case EvDisconnect:
				s.gracefulDisconnect()
				return stepGone
			default:
				s.client.Queue(presence.ServerMessage{Event: EvMalformedRequest, Error: MsgUnknownEvent})
				s.client.Queue(presence.ServerMessage{Event: EvChatPossibility, Round: r, Message: MsgChatOffer})
			}
		case <-ch:
		}
	}
}

// holdForChat parks the round loop while the chat side-channel is open.
func (s *Session) holdForChat(ctx context.Context) stepResult {
	for {
		ch := s.room.Changed()
		if s.room.ChatFinished() {
			return stepOK
		}
		if s.room.State() == StateFinished {
			return stepFinished
		}
		select {
		case <-ctx.Done():
			s.handleAbruptDisconnect()
			return stepGone
		case msg, ok := <-s.inbox:
			if !ok {
				s.handleAbruptDisconnect()
				return stepGone
			}
			switch msg.Event {
			case EvForfeit:
				s.forfeit()
				return stepFinished
			case EvDisconnect:
				s.gracefulDisconnect()
				return stepGone
			default:
				s.client.Queue(presence.ServerMessage{Event: EvHold, Message: MsgGameHold})
			}
		case <-ch:
		}
	}
}

func (s *Session) forfeit() {
	if !s.room.Forfeit(s.client.Name) {
		return
	}
	s.room.Hub.Broadcast(presence.ServerMessage{
		Event:   EvForfeitNotice,
		From:    s.client.Name,
		Message: fmt.Sprintf("%s has forfeited the game.", s.client.Name),
	})
}

// gracefulDisconnect handles a voluntary game_disconnect intent: same
// room bookkeeping as a transport loss, plus a clean close of our side.
func (s *Session) gracefulDisconnect() {
	s.closeConn(websocket.StatusNormalClosure, "Disconnected")
	s.handleAbruptDisconnect()
}

// handleAbruptDisconnect runs the shared offline path: drop the
// connection from the hub, mark the slot offline, and either finish the
// room (both gone) or announce the drop and start the grace watcher.
func (s *Session) handleAbruptDisconnect() {
	s.room.Hub.Unregister(s.client)
	if s.room.Hub.Get(s.client.Name) != nil {
		// A reconnect already replaced this connection (half-open
		// transport noticed late). The slot is live; the offline path
		// belongs to the new session, not this stale one.
		return
	}
	if s.room.Terminated() {
		return
	}
	bothOffline := s.room.SetOffline(s.client.Name)
	if bothOffline {
		return
	}
	s.room.Hub.Broadcast(presence.ServerMessage{
		Event:   EvPlayerLeft,
		From:    s.client.Name,
		Message: fmt.Sprintf("%s has disconnected", s.client.Name),
	})
	go s.reg.MonitorDisconnect(s.room, s.client.Name)
}

// terminate runs the one-shot end of match: winner announcement, full
// teardown, and deletion of the room. Losers of the latch race return
// quietly; their connection is closed by the winner's teardown.
func (s *Session) terminate() {
	if !s.room.MarkTerminated() {
		return
	}
	players := s.room.Players()
	scores := s.room.Scores()
	s.room.Hub.Broadcast(presence.ServerMessage{
		Event:   EvGameOver,
		Players: players[:],
		Scores:  scores[:],
		Winner:  s.room.Winner(),
	})
	s.reg.Teardown(s.room, true)
}

func (s *Session) peerName() string {
	players := s.room.Players()
	if players[0] == s.client.Name {
		return players[1]
	}
	return players[0]
}

func (s *Session) closeConn(code websocket.StatusCode, reason string) {
	if s.client.Conn != nil {
		s.client.Conn.Close(code, reason)
	}
}
