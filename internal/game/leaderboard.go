package game

import (
	"sort"
)

// LeaderboardEntry represents a player in the leaderboard
type LeaderboardEntry struct {
	Rank         int      `json:"rank"`
	ID           EntityID `json:"id"`
	Name         string   `json:"name"`
	Skin         string   `json:"skin"`
	Eliminations int      `json:"eliminations"`
	DamageDealt  int      `json:"damageDealt"`
	Score        int      `json:"score"`
}

// RankPlayers orders players by eliminations, then damage dealt, then id,
// and returns at most n entries. n <= 0 returns everyone.
func RankPlayers(players []PlayerSnapshot, n int) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		ranked[i] = LeaderboardEntry{
			ID:           p.ID,
			Name:         p.Name,
			Skin:         p.Skin,
			Eliminations: p.Eliminations,
			DamageDealt:  p.DamageDealt,
			Score:        p.Score,
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Eliminations != b.Eliminations {
			return a.Eliminations > b.Eliminations
		}
		if a.DamageDealt != b.DamageDealt {
			return a.DamageDealt > b.DamageDealt
		}
		return a.ID < b.ID
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Leaderboard returns the top n players of the latest snapshot
func (e *Engine) Leaderboard(n int) []LeaderboardEntry {
	return RankPlayers(e.GetSnapshot().Players, n)
}
