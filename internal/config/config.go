// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, simulation and server settings.
//
// Every section has a Default*() constructor and a *FromEnv() variant that
// applies environment overrides on top of the defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig describes the playfield and per-entity geometry.
type ArenaConfig struct {
	Width          float64       // Arena width in world units
	Height         float64       // Arena height in world units
	PlayerRadius   float64       // Collision radius of a player body
	HitRadius      float64       // Projectile-vs-player hit distance
	MuzzleOffset   float64       // Extra distance past the radius where projectiles spawn
	MaxHealth      int           // Health a player spawns with
	InventorySlots int           // Inventory capacity
	RespawnDelay   time.Duration // Time an eliminated player waits before respawning
	Loadout        []string      // Weapon types granted on join; the first is equipped
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:          2000,
		Height:         2000,
		PlayerRadius:   32,
		HitRadius:      32,
		MuzzleOffset:   3, // 32 + 3 = 35 units in front of the player centre
		MaxHealth:      100,
		InventorySlots: 6,
		RespawnDelay:   3 * time.Second,
		Loadout:        []string{"pistol"},
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if w := getEnvFloat("ARENA_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("ARENA_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if ms := getEnvInt("RESPAWN_DELAY_MS", -1); ms >= 0 {
		cfg.RespawnDelay = time.Duration(ms) * time.Millisecond
	}
	if l := os.Getenv("STARTING_LOADOUT"); l != "" {
		cfg.Loadout = nil
		for _, w := range strings.Split(l, ",") {
			if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
				cfg.Loadout = append(cfg.Loadout, w)
			}
		}
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds tick loop and movement tuning.
// The client prediction engine uses the same values so that both sides
// integrate identically.
type SimConfig struct {
	TickRate    int     // Ticks per second (fixed timestep = 1s / TickRate)
	MoveAccel   float64 // Per-axis acceleration applied while a direction is held (units/s²)
	MaxSpeed    float64 // Speed clamp applied after input (units/s)
	FrictionAir float64 // Fraction of velocity lost per 1/60 s
	Strict      bool    // Panic on invariant violations instead of skipping
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:    60,
		MoveAccel:   2500,
		MaxSpeed:    1800, // 30 units per 1/60 s step
		FrictionAir: 0.18,
		Strict:      false,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	cfg.Strict = getEnvBool("STRICT_INVARIANTS", cfg.Strict)

	return cfg
}

// TickInterval returns the fixed timestep.
func (c SimConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP and transport settings.
type ServerConfig struct {
	Port           int
	MaxPlayers     int
	WireCodec      string   // "json" or "msgpack"
	AllowedOrigins []string // Exact origins accepted besides localhost
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:       3000,
		MaxPlayers: 64,
		WireCodec:  "json",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if c := os.Getenv("WIRE_CODEC"); c != "" {
		cfg.WireCodec = strings.ToLower(c)
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and per-connection validation.
type ResourceLimits struct {
	MaxProjectiles        int     // Maximum live projectiles in the arena
	MaxWSConnectionsTotal int     // Hard cap on concurrent WebSocket sessions
	MaxWSConnectionsPerIP int     // Concurrent WebSocket sessions per IP
	InputRate             float64 // Inbound messages per second per connection
	InputBurst            int     // Inbound message burst per connection
	MaxMessageBytes       int64   // Largest accepted inbound frame
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxProjectiles:        512,
		MaxWSConnectionsTotal: 256,
		MaxWSConnectionsPerIP: 8,
		InputRate:             240, // mouse-move driven clients send a lot
		InputBurst:            120,
		MaxMessageBytes:       4096,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if r := getEnvFloat("INPUT_RATE", 0); r > 0 {
		cfg.InputRate = r
	}
	if b := getEnvInt("INPUT_BURST", 0); b > 0 {
		cfg.InputBurst = b
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

// ObservabilityConfig configures the debug server and event log.
type ObservabilityConfig struct {
	DebugEnabled bool
	DebugAddr    string // Localhost only unless ALLOW_DEBUG_EXTERNAL=true
	EventLogPath string // Empty disables the JSONL event log
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
		EventLogPath: "events.jsonl",
	}
}

// ObservabilityFromEnv returns observability configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if getEnvBool("DISABLE_DEBUG_SERVER", false) {
		cfg.DebugEnabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena         ArenaConfig
	Sim           SimConfig
	Server        ServerConfig
	Limits        ResourceLimits
	Observability ObservabilityConfig
}

// Default returns the complete configuration without reading the environment.
func Default() AppConfig {
	return AppConfig{
		Arena:         DefaultArena(),
		Sim:           DefaultSim(),
		Server:        DefaultServer(),
		Limits:        DefaultLimits(),
		Observability: DefaultObservability(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Arena:         ArenaFromEnv(),
		Sim:           SimFromEnv(),
		Server:        ServerFromEnv(),
		Limits:        LimitsFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
