package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"redblue/internal/game"
	"redblue/internal/presence"

	"github.com/coder/websocket"
)

var acceptOptions = &websocket.AcceptOptions{
	OriginPatterns: []string{"*"},
}

// handleGameWS is the game session channel. Fresh joins hit rooms in the
// created state; a reconnection token switches validation to the ongoing
// state. Every rejection closes with the same abnormal status code.
func (s *Server) handleGameWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	playerName := r.URL.Query().Get("player_name")
	token := r.URL.Query().Get("token")

	conn, err := websocket.Accept(w, r, acceptOptions)
	if err != nil {
		log.Printf("[WS] accept: %v\n", err)
		return
	}
	ctx := r.Context()

	if playerName == "" {
		reject(ctx, conn, "player_name is required")
		return
	}

	room := s.Registry.Get(code)
	if room == nil {
		reject(ctx, conn, game.MsgNotFound)
		return
	}

	client := presence.NewClient(playerName, conn)

	switch room.State() {
	case game.StateCreated:
		if room.Hub.Count() >= 2 {
			reject(ctx, conn, game.MsgGameFull)
			return
		}
		if err := room.Join(playerName); err != nil {
			if errors.Is(err, game.ErrRoomFull) {
				reject(ctx, conn, game.MsgGameFull)
			} else {
				reject(ctx, conn, game.MsgNotFound)
			}
			return
		}
		if err := room.Hub.Register(client); err != nil {
			reject(ctx, conn, game.MsgGameFull)
			return
		}
		client.Queue(presence.ServerMessage{
			Event:   game.EvReconnectionToken,
			Message: game.MsgReconnectionToken,
			Token:   room.Tracker.Token(playerName),
		})
		client.Queue(presence.ServerMessage{Event: game.EvJoin, Message: game.MsgJoined})

	case game.StateOngoing:
		if token == "" {
			reject(ctx, conn, game.MsgInProgress)
			return
		}
		if err := room.Rejoin(playerName, token, s.Registry.Window()); err != nil {
			switch {
			case errors.Is(err, game.ErrExpiredToken):
				reject(ctx, conn, game.MsgExpiredToken)
			case errors.Is(err, game.ErrInvalidToken):
				reject(ctx, conn, game.MsgInvalidToken)
			default:
				reject(ctx, conn, game.MsgNotFound)
			}
			return
		}
		if err := room.Hub.Register(client); err != nil {
			reject(ctx, conn, game.MsgGameFull)
			return
		}
		client.Queue(presence.ServerMessage{Event: game.EvConnected, Message: game.MsgReconnected})
		room.Hub.Broadcast(presence.ServerMessage{
			Event:   game.EvPlayerReconnected,
			From:    playerName,
			Message: playerName + " has reconnected.",
		})

	default:
		reject(ctx, conn, game.MsgGameFinished)
		return
	}

	log.Printf("[WS] Player %s connected to game %s\n", playerName, code)

	go client.WritePump(ctx)
	inbox := make(chan presence.ClientMessage, 8)
	go readPump(ctx, conn, inbox)

	game.NewSession(s.Registry, room, client, inbox).Run(ctx)
}

// handleChatWS is the consent-gated chat side channel.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	playerName := r.URL.Query().Get("player_name")

	conn, err := websocket.Accept(w, r, acceptOptions)
	if err != nil {
		log.Printf("[WS] accept: %v\n", err)
		return
	}
	ctx := r.Context()

	room := s.Registry.Get(code)
	if room == nil {
		reject(ctx, conn, game.MsgNotFound)
		return
	}
	if err := room.ChatAdmits(playerName); err != nil {
		if errors.Is(err, game.ErrNotFound) {
			reject(ctx, conn, game.MsgNotFound)
		} else {
			reject(ctx, conn, game.MsgChatUnavailable)
		}
		return
	}

	client := presence.NewClient(playerName, conn)
	if err := room.ChatHub.Register(client); err != nil {
		reject(ctx, conn, game.MsgChatUnavailable)
		return
	}

	go client.WritePump(ctx)
	inbox := make(chan presence.ClientMessage, 8)
	go readPump(ctx, conn, inbox)

	game.NewChatSession(room, client, inbox).Run(ctx)
}

// readPump decodes inbound frames into the session inbox and closes it
// on transport loss, which the session treats as an abrupt disconnect.
// Undecodable frames become empty messages the session answers in-band.
func readPump(ctx context.Context, conn *websocket.Conn, inbox chan<- presence.ClientMessage) {
	defer close(inbox)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg presence.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = presence.ClientMessage{}
		}
		select {
		case inbox <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// reject answers a failed handshake and closes with the shared rejection
// status code.
func reject(ctx context.Context, conn *websocket.Conn, reason string) {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	conn.Write(ctx, websocket.MessageText, payload)
	conn.Close(game.StatusRejected, reason)
}
