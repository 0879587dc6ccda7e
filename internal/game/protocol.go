package game

// Inbound client events.
const (
	EvChoice      = "game_choice"
	EvForfeit     = "game_forfeit"
	EvDisconnect  = "game_disconnect"
	EvChatAccept  = "chat_accept"
	EvChatDecline = "chat_decline"
	EvChatMessage = "chat_message"
	EvChatStop    = "chat_stop"
)

// Outbound server events.
const (
	EvReconnectionToken   = "game_reconnection_token"
	EvConnected           = "game_connected"
	EvPlayerReconnected   = "game_player_reconnected"
	EvJoin                = "game_join"
	EvJoinWaiting         = "game_join_wfp"
	EvRoundStart          = "game_round_start"
	EvRoundWaiting        = "game_round_wfp"
	EvRoundWaitingOffline = "game_round_wfp_disconnect"
	EvRoundOver           = "game_round_over"
	EvGameOver            = "game_over"
	EvForfeitNotice       = "game_forfeit"
	EvPlayerLeft          = "game_player_left"
	EvTimeout             = "game_timeout"
	EvTimeoutScore        = "game_over_disconnect_score"
	EvUnexpectedFinish    = "game_unexpected_finish"
	EvHold                = "game_hold"
	EvIncorrectFormat     = "incorrect_format"
	EvMalformedRequest    = "malformed_request"

	// Chat. The misspelling in chat_possibilty is part of the wire
	// protocol; clients already match on it.
	EvChatPossibility    = "chat_possibilty"
	EvChatAccepted       = "chat_accepted"
	EvChatDeclined       = "chat_declined"
	EvChatStart          = "chat_start"
	EvChatPlayerConnect  = "chat_player_connected"
	EvChatWaitingJoin    = "chat_wfp_join"
	EvChatOpen           = "chat_open"
	EvChatEnded          = "chat_ended"
	EvChatDisconnect     = "chat_disconnect"
)

// MaxChatMessageLen caps chat payloads.
const MaxChatMessageLen = 255
