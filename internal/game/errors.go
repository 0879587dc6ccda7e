package game

import "errors"

// User-visible failure taxonomy. Handshake errors close the connection
// with a rejection status; protocol violations are answered in-band and
// never terminate the session.
var (
	ErrNotFound     = errors.New("game not found")
	ErrRoomFull     = errors.New("game is full")
	ErrWrongState   = errors.New("game is not in a joinable state")
	ErrInvalidToken = errors.New("invalid reconnection token")
	ErrExpiredToken = errors.New("reconnection token has expired")
	ErrPageNotFound = errors.New("page not found")
)

// Wire messages accompanying server events.
const (
	MsgNotFound          = "Game not found"
	MsgGameFull          = "Game is full"
	MsgGameFinished      = "Game is already finished."
	MsgReconnectionToken = "You have received a reconnection token. This should be used if the user disconnects."
	MsgInProgress        = "Game is already in progress. Please provide a reconnection token."
	MsgInvalidToken      = "Invalid reconnection token. Please try again."
	MsgExpiredToken      = "Reconnection token has expired. You cannot join this game."
	MsgReconnected       = "Reconnected successfully. You can now play the game."
	MsgJoined            = "Joined game successfully."
	MsgWaitingForJoin    = "Waiting for the other player to join..."
	MsgWaitingForPeer    = "Waiting for the other player to finish the round."
	MsgPeerDisconnected  = "The other player has disconnected however he can still reconnect and make a choice."
	MsgInvalidChoice     = "Invalid choice. Must be 0 or 1. Please try again."
	MsgUnknownEvent      = "Unknown or malformed event."
	MsgGameTimeout       = "The game has ended due to inactivity."
	MsgUnexpectedFinish  = "The game has finished unexpectedly."
	MsgChatOffer         = "Chat is available this round. Send chat_accept or chat_decline."
	MsgGameHold          = "Game on hold while the chat session is open."
	MsgChatTooLong       = "Chat messages must be non-empty and at most 255 characters."
	MsgChatWaitingJoin   = "Waiting for the other player to join the chat..."
	MsgChatUnavailable   = "Chat is not available for this game."
)
