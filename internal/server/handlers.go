package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"redblue/internal/game"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encoding response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"ok": false, "detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	room, err := s.Registry.CreateRoom()
	if err != nil {
		log.Printf("[Handle:Create] %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	log.Printf("[Handle:Create] Created game %s\n", room.Code)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "code": room.Code})
}

type gameSummary struct {
	Player1      string `json:"player1"`
	Player1Score int    `json:"player1_score"`
	Player2      string `json:"player2"`
	Player2Score int    `json:"player2_score"`
	GameState    string `json:"game_state"`
}

func summarize(rec game.MatchRecord) gameSummary {
	return gameSummary{
		Player1:      rec.Player1,
		Player1Score: rec.Score1,
		Player2:      rec.Player2,
		Player2Score: rec.Score2,
		GameState:    string(rec.State),
	}
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := queryInt(q.Get("page_size"), 10)
	pageNumber := queryInt(q.Get("page_number"), 1)
	if pageSize < 1 || pageSize > 100 || pageNumber < 1 {
		writeError(w, http.StatusBadRequest, "invalid pagination parameters")
		return
	}

	recs, total, pages, err := s.Registry.Store().List(
		game.State(q.Get("game_state")), q.Get("game_code"), pageSize, pageNumber)
	if errors.Is(err, game.ErrPageNotFound) {
		writeError(w, http.StatusNotFound, "Page not found")
		return
	}
	if err != nil {
		log.Printf("[Handle:ListGames] %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}

	summaries := make([]gameSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, summarize(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"games":        summaries,
		"total_games":  total,
		"total_pages":  pages,
		"current_page": pageNumber,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UUID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.Registry.Store().GetByID(body.UUID)
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}
	if err != nil {
		log.Printf("[Handle:GetGame] %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch game")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"game": map[string]any{
			"game_code":     rec.Code,
			"player1":       rec.Player1,
			"player2":       rec.Player2,
			"player1_score": rec.Score1,
			"player2_score": rec.Score2,
			"round":         rec.Round,
			"game_state":    string(rec.State),
		},
	})
}

func (s *Server) handleResetGameState(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	err := s.Registry.ResetRoom(code)
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}
	if err != nil {
		log.Printf("[Handle:Reset] %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to reset game")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Game state reset successfully"})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return i
}
