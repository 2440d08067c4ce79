package game

import (
	"math"
	"testing"
	"time"
)

// TestProjectileExpiresByDistance checks range expiry is tick-rate independent
func TestProjectileExpiresByDistance(t *testing.T) {
	tests := []struct {
		name     string
		tickRate int
		// first tick on which the projectile is inactive
		wantTick int
	}{
		{"60 TPS", 60, 113},
		{"30 TPS", 30, 57},
		{"20 TPS", 20, 38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Projectile{Speed: 800, Range: 1500, Active: true}
			dt := time.Second / time.Duration(tt.tickRate)

			ticks := 0
			for p.Advance(dt) {
				ticks++
				if ticks > 10000 {
					t.Fatal("Projectile never expired")
				}
			}
			ticks++

			if ticks != tt.wantTick {
				t.Errorf("Expected inactive on tick %d, got %d", tt.wantTick, ticks)
			}

			// Simulated flight time lands in [1500/800, 1500/800 + dt)
			flight := time.Duration(ticks) * dt
			minFlight := time.Duration(1500.0 / 800.0 * float64(time.Second))
			if flight < minFlight || flight >= minFlight+dt {
				t.Errorf("Flight time %v outside [%v, %v)", flight, minFlight, minFlight+dt)
			}
		})
	}
}

// TestProjectileActiveIsMonotonic verifies inactive projectiles stay put
func TestProjectileActiveIsMonotonic(t *testing.T) {
	p := &Projectile{Speed: 800, Range: 10, Active: true}
	p.Advance(time.Second)
	x := p.X

	if p.Active {
		t.Fatal("Projectile should be spent")
	}
	if p.Advance(time.Second) {
		t.Error("Spent projectile must not reactivate")
	}
	if p.X != x {
		t.Error("Spent projectile must not move")
	}
}

// TestNewProjectileMuzzleOffset checks spawn position and heading
func TestNewProjectileMuzzleOffset(t *testing.T) {
	owner := NewPlayer(4, PlayerOptions{})
	owner.X, owner.Y = 100, 100
	owner.Angle = math.Pi / 2

	p := NewProjectile(1, owner, GetWeapon("pistol"), 35, 5*time.Second)

	if math.Abs(p.X-100) > 1e-9 || math.Abs(p.Y-135) > 1e-9 {
		t.Errorf("Expected spawn at (100, 135), got (%.3f, %.3f)", p.X, p.Y)
	}
	if p.OwnerID != 4 || p.Damage != 10 || p.Speed != 800 || p.Range != 800 {
		t.Errorf("Weapon stats not copied: %+v", p)
	}
	if !p.Active || p.CreatedAt != 5*time.Second {
		t.Error("New projectile should be active and stamped")
	}
}

// TestProjectileBounds checks the arena bounds test
func TestProjectileBounds(t *testing.T) {
	tests := []struct {
		x, y float64
		want bool
	}{
		{0, 0, true},
		{2000, 2000, true},
		{-0.1, 500, false},
		{500, 2000.1, false},
	}

	for _, tt := range tests {
		p := &Projectile{X: tt.x, Y: tt.y}
		if got := p.InBounds(2000, 2000); got != tt.want {
			t.Errorf("InBounds(%.1f, %.1f) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
