package game

import (
	"fmt"
	"time"

	"arena/internal/physics"
)

// EntityID identifies a connected player for the lifetime of its session.
type EntityID uint32

// Skins is the allow-list of selectable skins. Anything else is rejected,
// which keeps client strings out of asset paths.
var Skins = []string{"player.png", "player2.png", "player3.png"}

// ValidSkin reports whether skin is on the allow-list
func ValidSkin(skin string) bool {
	for _, s := range Skins {
		if s == skin {
			return true
		}
	}
	return false
}

// Player is the authoritative record of a connected participant.
// Only the tick loop writes to it.
type Player struct {
	ID        EntityID
	Name      string
	Skin      string
	Health    int
	MaxHealth int

	X, Y  float64 // copied from Body after every physics step
	Angle float64 // facing, radians

	Score        int
	Eliminations int
	DamageDealt  int

	Inventory []*Item
	MaxSlots  int
	Equipped  *Item // non-owning, always an element of Inventory

	Body physics.BodyID

	Eliminated bool
	respawnAt  time.Duration
}

// PlayerOptions contains options for creating a player
type PlayerOptions struct {
	Name           string
	Skin           string
	MaxHealth      int
	InventorySlots int
}

// NewPlayer creates a player without a body or loadout.
// The engine attaches both when it admits the player.
func NewPlayer(id EntityID, opts PlayerOptions) *Player {
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Player_%04d", id)
	}
	skin := opts.Skin
	if !ValidSkin(skin) {
		skin = Skins[0]
	}
	maxHealth := opts.MaxHealth
	if maxHealth <= 0 {
		maxHealth = 100
	}
	slots := opts.InventorySlots
	if slots <= 0 {
		slots = 6
	}

	return &Player{
		ID:        id,
		Name:      name,
		Skin:      skin,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Inventory: make([]*Item, 0, slots),
		MaxSlots:  slots,
	}
}

// AddToInventory appends item if a slot is free and takes ownership of it.
func (p *Player) AddToInventory(item *Item) bool {
	if item == nil || len(p.Inventory) >= p.MaxSlots {
		return false
	}
	item.GiveTo(p.ID)
	p.Inventory = append(p.Inventory, item)
	return true
}

// RemoveFromInventory removes and returns the item, unequipping it if needed.
// Returns nil if the item is not carried.
func (p *Player) RemoveFromInventory(itemID string) *Item {
	for i, it := range p.Inventory {
		if it.ID != itemID {
			continue
		}
		p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
		if p.Equipped == it {
			p.Equipped = nil
		}
		it.Detach()
		return it
	}
	return nil
}

// Equip selects a carried weapon. Non-weapons and unknown ids are rejected.
func (p *Player) Equip(itemID string) bool {
	for _, it := range p.Inventory {
		if it.ID == itemID && it.Kind == ItemKindWeapon {
			p.Equipped = it
			return true
		}
	}
	return false
}

// EquippedWeapon returns the weapon payload of the equipped item, or nil
func (p *Player) EquippedWeapon() *Weapon {
	w, _ := p.Equipped.AsWeapon()
	return w
}

// SetSkin changes the skin if it is on the allow-list
func (p *Player) SetSkin(skin string) bool {
	if !ValidSkin(skin) {
		return false
	}
	p.Skin = skin
	return true
}

// TakeDamage lowers health, clamped at zero, and returns the amount removed
func (p *Player) TakeDamage(damage int) int {
	if damage <= 0 || p.Health <= 0 {
		return 0
	}
	applied := damage
	if applied > p.Health {
		applied = p.Health
	}
	p.Health -= applied
	return applied
}

// Alive reports whether the player can move, fire and be hit
func (p *Player) Alive() bool {
	return !p.Eliminated && p.Health > 0
}

// RefillWeapons restores every carried weapon
func (p *Player) RefillWeapons() {
	for _, it := range p.Inventory {
		if w, ok := it.AsWeapon(); ok {
			w.Refill()
		}
	}
}
