package game

import (
	"context"

	"redblue/internal/presence"

	"github.com/coder/websocket"
)

// ChatSession drives one participant of the consent-gated side channel.
// It runs on the room's capped chat hub, independent of the game
// connections; its only feedback into the round loop is the
// chat-finished flag.
type ChatSession struct {
	room   *Room
	client *presence.Client
	inbox  <-chan presence.ClientMessage
}

func NewChatSession(room *Room, client *presence.Client, inbox <-chan presence.ClientMessage) *ChatSession {
	return &ChatSession{room: room, client: client, inbox: inbox}
}

// Run blocks until the chat ends. The caller has already passed the
// admission gates and registered the client on the chat hub.
func (s *ChatSession) Run(ctx context.Context) {
	s.room.ChatHub.Broadcast(presence.ServerMessage{Event: EvChatPlayerConnect, From: s.client.Name})
	if s.room.ChatHub.Count() < 2 {
		s.client.Queue(presence.ServerMessage{Event: EvChatWaitingJoin, Message: MsgChatWaitingJoin})
	} else {
		s.room.ChatHub.Broadcast(presence.ServerMessage{Event: EvChatOpen})
	}

	for {
		select {
		case <-ctx.Done():
			s.end(true)
			return
		case msg, ok := <-s.inbox:
			if !ok {
				s.end(true)
				return
			}
			switch msg.Event {
			case EvChatMessage:
				if msg.Content == "" || len(msg.Content) > MaxChatMessageLen {
					s.client.Queue(presence.ServerMessage{Event: EvIncorrectFormat, Error: MsgChatTooLong})
					continue
				}
				s.room.ChatHub.Broadcast(presence.ServerMessage{
					Event:   EvChatMessage,
					From:    s.client.Name,
					Content: msg.Content,
				})
			case EvChatStop:
				s.end(false)
				return
			default:
				s.client.Queue(presence.ServerMessage{Event: EvMalformedRequest, Error: MsgUnknownEvent})
			}
		}
	}
}

// end closes the whole sub-session for everyone. Whoever flips the
// finished flag first announces the ending and drops the connections.
func (s *ChatSession) end(disconnected bool) {
	if disconnected {
		s.room.ChatHub.Unregister(s.client)
		s.room.ChatHub.Broadcast(presence.ServerMessage{Event: EvChatDisconnect, From: s.client.Name})
	}
	if !s.room.FinishChat() {
		return
	}
	s.room.ChatHub.Broadcast(presence.ServerMessage{Event: EvChatEnded})
	flushDelay()
	s.room.ChatHub.DisconnectAll(websocket.StatusNormalClosure, "Chat has ended.")
}
