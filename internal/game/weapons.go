package game

import (
	"sort"
	"time"
)

// WeaponSpec is the static configuration of a weapon type
type WeaponSpec struct {
	Type            string        `json:"type"`
	Name            string        `json:"name"`
	ProjectileType  string        `json:"projectileType"`
	Capacity        int           `json:"capacity"`
	ReserveCapacity int           `json:"reserveCapacity"`
	FireInterval    time.Duration `json:"-"`
	ReloadDuration  time.Duration `json:"-"`
	Damage          int           `json:"damage"`
	Range           float64       `json:"range"`
	Speed           float64       `json:"speed"` // units per second
}

// StartingWeapon is handed to every player on spawn
const StartingWeapon = "pistol"

// Weapons is the map of all available weapon types
var Weapons = map[string]WeaponSpec{
	"pistol": {
		Type:            "pistol",
		Name:            "Basic Pistol",
		ProjectileType:  "bullet",
		Capacity:        10,
		ReserveCapacity: 30,
		FireInterval:    300 * time.Millisecond,
		ReloadDuration:  2000 * time.Millisecond,
		Damage:          10,
		Range:           800,
		Speed:           800,
	},
	"rifle": {
		Type:            "rifle",
		Name:            "Assault Rifle",
		ProjectileType:  "bullet",
		Capacity:        30,
		ReserveCapacity: 90,
		FireInterval:    100 * time.Millisecond,
		ReloadDuration:  2500 * time.Millisecond,
		Damage:          8,
		Range:           1200,
		Speed:           1200,
	},
	"smg": {
		Type:            "smg",
		Name:            "SMG",
		ProjectileType:  "bullet",
		Capacity:        25,
		ReserveCapacity: 75,
		FireInterval:    80 * time.Millisecond,
		ReloadDuration:  1800 * time.Millisecond,
		Damage:          6,
		Range:           600,
		Speed:           900,
	},
}

// GetWeapon returns a weapon spec by type, defaults to the starting weapon
func GetWeapon(weaponType string) WeaponSpec {
	if w, ok := Weapons[weaponType]; ok {
		return w
	}
	return Weapons[StartingWeapon]
}

// GetAllWeapons returns all weapon specs sorted by type
func GetAllWeapons() []WeaponSpec {
	weapons := make([]WeaponSpec, 0, len(Weapons))
	for _, w := range Weapons {
		weapons = append(weapons, w)
	}
	sort.Slice(weapons, func(i, j int) bool { return weapons[i].Type < weapons[j].Type })
	return weapons
}

// WeaponState is the reload state machine state
type WeaponState uint8

const (
	WeaponIdle WeaponState = iota
	WeaponReloading
)

// Weapon is a live weapon instance with ammo and timers.
// All timing is against the simulation clock passed in by the caller.
type Weapon struct {
	Spec        WeaponSpec
	CurrentAmmo int
	ReserveAmmo int
	State       WeaponState

	lastFired   time.Duration
	hasFired    bool
	reloadStart time.Duration
}

// NewWeapon creates a weapon with a full magazine and full reserve
func NewWeapon(spec WeaponSpec) *Weapon {
	return &Weapon{
		Spec:        spec,
		CurrentAmmo: spec.Capacity,
		ReserveAmmo: spec.ReserveCapacity,
	}
}

// Reloading reports whether a reload is in progress
func (w *Weapon) Reloading() bool {
	return w.State == WeaponReloading
}

// CanFire is true iff idle, loaded, and the fire interval has elapsed
func (w *Weapon) CanFire(now time.Duration) bool {
	if w.State != WeaponIdle || w.CurrentAmmo <= 0 {
		return false
	}
	return !w.hasFired || now-w.lastFired >= w.Spec.FireInterval
}

// Fire consumes one round. Returns false without mutating anything
// when CanFire is false.
func (w *Weapon) Fire(now time.Duration) bool {
	if !w.CanFire(now) {
		return false
	}
	w.CurrentAmmo--
	w.lastFired = now
	w.hasFired = true
	return true
}

// StartReload enters the reloading state. Fails if already reloading,
// the magazine is full, or the reserve is empty.
func (w *Weapon) StartReload(now time.Duration) bool {
	if w.State == WeaponReloading || w.CurrentAmmo >= w.Spec.Capacity || w.ReserveAmmo <= 0 {
		return false
	}
	w.State = WeaponReloading
	w.reloadStart = now
	return true
}

// UpdateReload completes a due reload, moving min(capacity-current, reserve)
// rounds from reserve into the magazine. Returns true when a reload finished.
func (w *Weapon) UpdateReload(now time.Duration) bool {
	if w.State != WeaponReloading || now-w.reloadStart < w.Spec.ReloadDuration {
		return false
	}
	transfer := w.Spec.Capacity - w.CurrentAmmo
	if transfer > w.ReserveAmmo {
		transfer = w.ReserveAmmo
	}
	w.CurrentAmmo += transfer
	w.ReserveAmmo -= transfer
	w.State = WeaponIdle
	return true
}

// Refill restores a full magazine and reserve and cancels any reload
func (w *Weapon) Refill() {
	w.CurrentAmmo = w.Spec.Capacity
	w.ReserveAmmo = w.Spec.ReserveCapacity
	w.State = WeaponIdle
	w.hasFired = false
}
