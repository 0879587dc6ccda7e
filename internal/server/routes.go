package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"redblue/internal/config"
	"redblue/internal/db"
	"redblue/internal/game"
)

type Server struct {
	Registry *game.Registry
}

func Run() error {
	cfg := config.Load()

	var store game.MatchStore
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := database.Migrate(); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			store = database
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running with in-memory store")
	}
	if store == nil {
		store = game.NewMemStore()
	}

	reg := game.NewRegistry(store,
		time.Duration(cfg.ReconnectWindow)*time.Second, cfg.ChatRounds)
	srv := &Server{Registry: reg}

	mux := NewMux(srv, cfg.DebugEndpoints)

	addr := "0.0.0.0:" + cfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", cfg.Port)
	return http.ListenAndServe(addr, mux)
}

// NewMux mounts every route. Debug routes are opt-in and must stay off
// in a hardened deployment.
func NewMux(srv *Server, debug bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/create", srv.handleCreateGame)
	mux.HandleFunc("GET /api/games", srv.handleListGames)
	mux.HandleFunc("POST /api/game", srv.handleGetGame)
	mux.HandleFunc("GET /ws/{code}", srv.handleGameWS)
	mux.HandleFunc("GET /ws/{code}/chat", srv.handleChatWS)
	mux.HandleFunc("GET /health", srv.handleHealth)
	if debug {
		mux.HandleFunc("GET /debug/resetGameState/{code}", srv.handleResetGameState)
	}
	return mux
}
