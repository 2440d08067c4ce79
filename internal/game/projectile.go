package game

import (
	"math"
	"time"
)

// Projectile is a bullet in flight. It moves in a straight line at a
// constant speed and expires once it has travelled its range.
type Projectile struct {
	ID      uint32
	Type    string
	OwnerID EntityID // used only to exclude self-hits

	X, Y  float64
	Angle float64
	Speed float64 // units per second

	Damage   int
	Range    float64
	Distance float64 // accumulated travel

	Active    bool
	CreatedAt time.Duration
}

// NewProjectile spawns a projectile fired by owner along its facing.
// The muzzle sits offset units from the owner's centre.
func NewProjectile(id uint32, owner *Player, spec WeaponSpec, offset float64, now time.Duration) *Projectile {
	return &Projectile{
		ID:        id,
		Type:      spec.ProjectileType,
		OwnerID:   owner.ID,
		X:         owner.X + math.Cos(owner.Angle)*offset,
		Y:         owner.Y + math.Sin(owner.Angle)*offset,
		Angle:     owner.Angle,
		Speed:     spec.Speed,
		Damage:    spec.Damage,
		Range:     spec.Range,
		Active:    true,
		CreatedAt: now,
	}
}

// Advance moves the projectile by speed*dt and deactivates it once the
// accumulated distance reaches its range. Returns whether it is still active.
func (p *Projectile) Advance(dt time.Duration) bool {
	if !p.Active {
		return false
	}
	step := p.Speed * dt.Seconds()
	p.X += math.Cos(p.Angle) * step
	p.Y += math.Sin(p.Angle) * step
	p.Distance += step

	if p.Distance >= p.Range {
		p.Active = false
	}
	return p.Active
}

// InBounds reports whether the projectile is inside [0,width]x[0,height]
func (p *Projectile) InBounds(width, height float64) bool {
	return p.X >= 0 && p.X <= width && p.Y >= 0 && p.Y <= height
}

// Deactivate clears the active flag. It is never set again.
func (p *Projectile) Deactivate() {
	p.Active = false
}

// ProjectileSnapshot is an immutable copy of projectile state
type ProjectileSnapshot struct {
	ID      uint32
	Type    string
	X, Y    float64
	Angle   float64
	OwnerID EntityID
}

// ToSnapshot creates an immutable snapshot for broadcast
func (p *Projectile) ToSnapshot() ProjectileSnapshot {
	return ProjectileSnapshot{
		ID:      p.ID,
		Type:    p.Type,
		X:       p.X,
		Y:       p.Y,
		Angle:   p.Angle,
		OwnerID: p.OwnerID,
	}
}
