package game

import (
	"github.com/google/uuid"
)

// ItemKind discriminates the item variants.
type ItemKind uint8

const (
	ItemKindWeapon ItemKind = iota + 1
	ItemKindConsumable
	ItemKindPowerup
)

// String returns the wire name of the kind
func (k ItemKind) String() string {
	switch k {
	case ItemKindWeapon:
		return "weapon"
	case ItemKindConsumable:
		return "consumable"
	case ItemKindPowerup:
		return "powerup"
	default:
		return "unknown"
	}
}

// Location says where an item currently lives.
type Location uint8

const (
	LocationNone Location = iota
	LocationPlayer
	LocationGround
	LocationChest
)

// String returns the wire name of the location
func (l Location) String() string {
	switch l {
	case LocationPlayer:
		return "player"
	case LocationGround:
		return "ground"
	case LocationChest:
		return "chest"
	default:
		return "none"
	}
}

// Item is a tagged variant. Weapon data lives in a payload that is only
// reachable through AsWeapon after the kind check.
//
// Placement is either carried (OwnerID) or positioned (WorldX/WorldY),
// never both: the placement methods reset the other half.
type Item struct {
	ID        string
	Kind      ItemKind
	Name      string
	Equipable bool
	Stackable bool
	MaxStack  int

	Location Location
	OwnerID  EntityID // valid for LocationPlayer and LocationChest
	WorldX   float64  // valid for LocationGround
	WorldY   float64

	weapon *Weapon
}

// NewWeaponItem wraps a freshly loaded weapon of the given type.
func NewWeaponItem(spec WeaponSpec) *Item {
	return &Item{
		ID:        uuid.NewString(),
		Kind:      ItemKindWeapon,
		Name:      spec.Name,
		Equipable: true,
		MaxStack:  1,
		weapon:    NewWeapon(spec),
	}
}

// AsWeapon returns the weapon payload if this item is a weapon.
func (it *Item) AsWeapon() (*Weapon, bool) {
	if it == nil || it.Kind != ItemKindWeapon || it.weapon == nil {
		return nil, false
	}
	return it.weapon, true
}

// GiveTo marks the item as carried by owner.
func (it *Item) GiveTo(owner EntityID) {
	it.Location = LocationPlayer
	it.OwnerID = owner
	it.WorldX, it.WorldY = 0, 0
}

// PlaceOnGround drops the item at a world position.
func (it *Item) PlaceOnGround(x, y float64) {
	it.Location = LocationGround
	it.OwnerID = 0
	it.WorldX, it.WorldY = x, y
}

// Detach clears placement entirely.
func (it *Item) Detach() {
	it.Location = LocationNone
	it.OwnerID = 0
	it.WorldX, it.WorldY = 0, 0
}
