// Package prediction runs the local player ahead of the server.
//
// A Predictor owns a shadow physics world holding one body for the local
// player. Local inputs move it immediately using the same movement rules
// as the server. Every authoritative state update hard-resets the shadow
// body and overwrites all non-positional fields; pending inputs are not
// replayed. Locally fired projectiles are speculative and are discarded
// after a fixed age or shortly after the next authoritative update.
//
// A Predictor is not safe for concurrent use.
package prediction

import (
	"math"
	"time"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/physics"
	"arena/internal/protocol"
)

const (
	// SpeculativeMaxAge bounds how long a speculative projectile lives
	SpeculativeMaxAge = 2 * time.Second
	// SpeculativeGrace is how long a speculative projectile survives an
	// authoritative update
	SpeculativeGrace = 100 * time.Millisecond
)

// Correction describes the effect of one reconciliation
type Correction struct {
	Found       bool        // the local player was in the update
	Created     bool        // the shadow body was created by this update
	Distance    float64     // how far the shadow body was moved
	Dropped     int         // pending inputs discarded
	LastSeq     uint32      // newest discarded input, 0 if none
	SentAt      physics.Vec // shadow position when LastSeq was sent
	Speculative int         // speculative projectiles discarded
}

// Stats accumulates reconciliation results
type Stats struct {
	Inputs           uint64
	Reconciles       uint64
	MaxCorrection    float64
	TotalDropped     uint64
	SpeculativeFired uint64
}

// Predictor is the client-side prediction engine for one local player
type Predictor struct {
	id     game.EntityID
	arena  config.ArenaConfig
	tuning game.MoveTuning
	dt     time.Duration

	frictionAir float64

	world   *physics.World
	body    physics.BodyID
	hasBody bool

	// Last authoritative view of the local player
	state protocol.PlayerState

	input   game.Input
	pending PendingBuffer

	// Local fire gating mirrors the server's weapon checks
	ammo      int
	lastFired time.Duration
	hasFired  bool

	speculative []*game.Projectile
	nextLocalID uint32

	stats Stats
}

// New creates a predictor for the entity the server assigned in its welcome
func New(id game.EntityID, arena config.ArenaConfig, sim config.SimConfig) *Predictor {
	return &Predictor{
		id:      id,
		arena:   arena,
		tuning:  game.TuningFromConfig(sim),
		dt:      sim.TickInterval(),
		world:   physics.NewWorld(arena.Width, arena.Height),
		pending: newPendingBuffer(),

		frictionAir: sim.FrictionAir,
	}
}

// ID returns the local entity id
func (p *Predictor) ID() game.EntityID {
	return p.id
}

// Input records a new local control state, tags it with the next sequence
// number and returns the message to send. Firing is attempted immediately.
func (p *Predictor) Input(in game.Input, now time.Duration) protocol.InputMessage {
	in.Seq = p.pending.Next()
	p.input = in
	p.stats.Inputs++

	if in.Fire {
		p.tryFire(now)
	}

	msg := protocol.FromInput(in)
	pos, _ := p.Position()
	p.pending.Store(msg, pos.X, pos.Y)
	return msg
}

// Frame advances the shadow world by one fixed step using the held input
func (p *Predictor) Frame(now time.Duration) {
	if p.hasBody && p.state.Health > 0 && !p.state.Eliminated {
		game.ApplyMovement(p.world, p.body, p.input, p.tuning)
		p.world.Step(p.dt)
		game.ClampToArena(p.world, p.body, p.arena.PlayerRadius, p.arena.Width, p.arena.Height)

		if p.input.Fire {
			p.tryFire(now)
		}
	}

	n := 0
	for _, proj := range p.speculative {
		if now-proj.CreatedAt < SpeculativeMaxAge &&
			proj.Advance(p.dt) && proj.InBounds(p.arena.Width, p.arena.Height) {
			p.speculative[n] = proj
			n++
		}
	}
	p.truncateSpeculative(n)
}

// tryFire spawns a speculative projectile if the last known weapon state
// allows a shot
func (p *Predictor) tryFire(now time.Duration) {
	w := p.state.EquippedWeapon
	if !p.hasBody || w == nil || w.Reloading || p.ammo <= 0 || p.state.Eliminated {
		return
	}
	spec := game.GetWeapon(w.WeaponType)
	if p.hasFired && now-p.lastFired < spec.FireInterval {
		return
	}

	angle := p.input.Angle
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		angle = p.state.Angle
	}
	pos, _ := p.world.Position(p.body)
	muzzle := pos.Add(physics.FromAngle(angle, p.arena.PlayerRadius+p.arena.MuzzleOffset))

	p.nextLocalID++
	p.speculative = append(p.speculative, &game.Projectile{
		ID:        p.nextLocalID,
		Type:      spec.ProjectileType,
		OwnerID:   p.id,
		X:         muzzle.X,
		Y:         muzzle.Y,
		Angle:     angle,
		Speed:     spec.Speed,
		Damage:    spec.Damage,
		Range:     spec.Range,
		Active:    true,
		CreatedAt: now,
	})
	p.ammo--
	p.lastFired = now
	p.hasFired = true
	p.stats.SpeculativeFired++
}

// Reconcile applies an authoritative state update. The shadow body is
// reset to the server position with zero velocity; pending inputs are
// dropped without replay. Applying the same update twice leaves the same
// shadow state.
func (p *Predictor) Reconcile(state *protocol.GameState, now time.Duration) Correction {
	auth, ok := state.Player(p.id)
	if !ok {
		return Correction{}
	}

	c := Correction{Found: true}
	target := physics.Vec{X: auth.X, Y: auth.Y}

	if !p.hasBody {
		p.body = p.world.AddCircle(auth.X, auth.Y, p.arena.PlayerRadius, p.frictionAir)
		p.hasBody = true
		c.Created = true
	} else {
		pos, _ := p.world.Position(p.body)
		c.Distance = pos.Sub(target).Len()
		p.world.SetPosition(p.body, target)
	}
	p.world.SetVelocity(p.body, physics.Vec{})
	if rec, ok := p.pending.Get(p.pending.NextSeq() - 1); ok {
		c.LastSeq = rec.Input.Seq
		c.SentAt = physics.Vec{X: rec.PredictedX, Y: rec.PredictedY}
	}
	c.Dropped = p.pending.Clear()

	p.state = auth
	if auth.EquippedWeapon != nil {
		p.ammo = auth.EquippedWeapon.CurrentAmmo
	} else {
		p.ammo = 0
	}

	n := 0
	for _, proj := range p.speculative {
		if now-proj.CreatedAt < SpeculativeGrace {
			p.speculative[n] = proj
			n++
		}
	}
	c.Speculative = len(p.speculative) - n
	p.truncateSpeculative(n)

	p.stats.Reconciles++
	p.stats.TotalDropped += uint64(c.Dropped)
	if c.Distance > p.stats.MaxCorrection {
		p.stats.MaxCorrection = c.Distance
	}
	return c
}

func (p *Predictor) truncateSpeculative(n int) {
	for i := n; i < len(p.speculative); i++ {
		p.speculative[i] = nil
	}
	p.speculative = p.speculative[:n]
}

// Position returns the predicted position of the local player
func (p *Predictor) Position() (physics.Vec, bool) {
	if !p.hasBody {
		return physics.Vec{}, false
	}
	return p.world.Position(p.body)
}

// Velocity returns the predicted velocity of the local player
func (p *Predictor) Velocity() (physics.Vec, bool) {
	if !p.hasBody {
		return physics.Vec{}, false
	}
	return p.world.Velocity(p.body)
}

// State returns the last authoritative non-positional state
func (p *Predictor) State() protocol.PlayerState {
	return p.state
}

// Ammo returns the locally predicted magazine count
func (p *Predictor) Ammo() int {
	return p.ammo
}

// Pending returns the number of inputs sent since the last update
func (p *Predictor) Pending() int {
	return p.pending.Len()
}

// Speculative returns the live speculative projectiles. The slice is
// reused on the next Frame or Reconcile.
func (p *Predictor) Speculative() []*game.Projectile {
	return p.speculative
}

// Stats returns accumulated counters
func (p *Predictor) Stats() Stats {
	return p.stats
}
