package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	ReconnectWindow int   // seconds a disconnected player has to come back
	ChatRounds      []int // rounds that offer the chat side-channel
	DebugEndpoints  bool  // mounts /debug routes, never enable in production
}

func Load() Config {
	// Best-effort: a missing .env file is not an error.
	godotenv.Load()

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ReconnectWindow: getEnvInt("RECONNECT_WINDOW", 600),
		ChatRounds:      getEnvInts("CHAT_ROUNDS", []int{5}),
		DebugEndpoints:  getEnvBool("DEBUG_ENDPOINTS", false),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInts(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fallback
		}
		out = append(out, i)
	}
	return out
}
