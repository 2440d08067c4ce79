// Package protocol defines the arena wire schema.
//
// Every frame is an envelope {event, data}. Client to server: input,
// reload, changeSkin, equip. Server to client: welcome, playersUpdate,
// gameStateUpdate. Field names are the JSON names for both codecs.
package protocol

import (
	"arena/internal/game"
)

const (
	EventInput         = "input"
	EventReload        = "reload"
	EventChangeSkin    = "changeSkin"
	EventEquip         = "equip"
	EventWelcome       = "welcome"
	EventPlayersUpdate = "playersUpdate"
	EventGameState     = "gameStateUpdate"
)

var knownEvents = map[string]bool{
	EventInput:         true,
	EventReload:        true,
	EventChangeSkin:    true,
	EventEquip:         true,
	EventWelcome:       true,
	EventPlayersUpdate: true,
	EventGameState:     true,
}

// KnownEvent reports whether name is part of the protocol
func KnownEvent(name string) bool {
	return knownEvents[name]
}

// Mouse is the cursor state at the time of an input
type Mouse struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Down bool    `json:"down"`
}

// InputMessage is sent by the client whenever its controls change
type InputMessage struct {
	Up    bool    `json:"up"`
	Down  bool    `json:"down"`
	Left  bool    `json:"left"`
	Right bool    `json:"right"`
	Mouse Mouse   `json:"mouse"`
	Angle float64 `json:"angle"`
	Seq   uint32  `json:"seq"`
}

// EquipMessage asks the server to equip a carried weapon
type EquipMessage struct {
	ItemID string `json:"itemId"`
}

// ArenaInfo is the playfield size
type ArenaInfo struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Welcome is the first message on every connection
type Welcome struct {
	ID       game.EntityID `json:"id"`
	Arena    ArenaInfo     `json:"arena"`
	TickRate int           `json:"tickRate"`
	Skins    []string      `json:"skins"`
}

// WeaponState is the ammo summary of an equipped weapon
type WeaponState struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	WeaponType      string `json:"weaponType"`
	CurrentAmmo     int    `json:"currentAmmo"`
	Capacity        int    `json:"capacity"`
	ReserveAmmo     int    `json:"reserveAmmo"`
	ReserveCapacity int    `json:"reserveCapacity"`
	Reloading       bool   `json:"reloading"`
}

// PlayerState is one player in a state or roster update.
// Skin is only filled in roster updates.
type PlayerState struct {
	ID             game.EntityID `json:"id"`
	Name           string        `json:"name"`
	Skin           string        `json:"skin,omitempty"`
	Health         int           `json:"health"`
	MaxHealth      int           `json:"maxHealth"`
	X              float64       `json:"x"`
	Y              float64       `json:"y"`
	Angle          float64       `json:"angle"`
	Score          int           `json:"score"`
	Eliminations   int           `json:"eliminations"`
	DamageDealt    int           `json:"damageDealt"`
	Eliminated     bool          `json:"eliminated,omitempty"`
	EquippedWeapon *WeaponState  `json:"equippedWeapon"`
}

// ProjectileState is one projectile in a state update
type ProjectileState struct {
	ID      uint32        `json:"id"`
	Type    string        `json:"type"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Angle   float64       `json:"angle"`
	OwnerID game.EntityID `json:"ownerId"`
}

// GameState is broadcast every tick
type GameState struct {
	Tick        uint64            `json:"tick"`
	Players     []PlayerState     `json:"players"`
	Projectiles []ProjectileState `json:"projectiles"`
}

// Player finds a player by id
func (s *GameState) Player(id game.EntityID) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}
