package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"arena/internal/game"
	"arena/internal/protocol"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

type stateResponse struct {
	protocol.GameState
	PlayerCount int `json:"playerCount"`
	AliveCount  int `json:"aliveCount"`
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.GetSnapshot()
	writeJSON(w, stateResponse{
		GameState:   protocol.FromSnapshot(snapshot),
		PlayerCount: snapshot.PlayerCount,
		AliveCount:  snapshot.AliveCount,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"engine":    h.engine.GetStats(),
		"rateLimit": h.rateLimiter.Stats(),
	})
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	writeJSON(w, h.engine.Leaderboard(limit))
}

func (h *routerHandlers) handleGetSkins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"skins": game.Skins})
}

type weaponResponse struct {
	game.WeaponSpec
	FireIntervalMs   int64 `json:"fireIntervalMs"`
	ReloadDurationMs int64 `json:"reloadDurationMs"`
}

func (h *routerHandlers) handleGetWeapons(w http.ResponseWriter, r *http.Request) {
	specs := game.GetAllWeapons()
	weapons := make([]weaponResponse, len(specs))
	for i, spec := range specs {
		weapons[i] = weaponResponse{
			WeaponSpec:       spec,
			FireIntervalMs:   spec.FireInterval.Milliseconds(),
			ReloadDurationMs: spec.ReloadDuration.Milliseconds(),
		}
	}
	writeJSON(w, weapons)
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"tick":   h.engine.GetSnapshot().Tick,
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
