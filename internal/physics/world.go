// Package physics is the rigid-body collaborator used by the arena.
//
// It integrates circular dynamic bodies without gravity: forces accumulate
// between steps, air friction damps velocity relative to a 1/60 s base step,
// and overlapping bodies are pushed apart after integration. Overlap
// candidates come from a resolv.Space broad-phase; the narrow phase is an
// exact circle test.
//
// A World is not safe for concurrent use. The server steps one World from
// its tick loop; each client owns its own shadow World.
package physics

import (
	"math"
	"sort"
	"time"

	"github.com/solarlune/resolv"
)

// BaseStep is the timestep the air friction coefficient is expressed against.
const BaseStep = time.Second / 60

// DefaultDensity gives a radius-32 body a mass of roughly 3.2.
const DefaultDensity = 0.001

const (
	bodyTag  = "body"
	cellSize = 64
)

// BodyID is a stable handle to a body inside a World.
type BodyID uint32

type body struct {
	id          BodyID
	pos         Vec
	vel         Vec // units per second
	force       Vec
	radius      float64
	frictionAir float64
	mass        float64
	obj         *resolv.Object
}

// World owns a set of circular bodies and steps them together.
type World struct {
	bodies   map[BodyID]*body
	byObject map[*resolv.Object]*body
	order    []BodyID // ascending, for deterministic stepping
	space    *resolv.Space
	nextID   BodyID
}

// NewWorld creates an empty world sized for the given playfield.
// Bodies outside the playfield still integrate but are not overlap-tested.
func NewWorld(width, height float64) *World {
	w := int(math.Ceil(width))
	h := int(math.Ceil(height))
	if w < cellSize {
		w = cellSize
	}
	if h < cellSize {
		h = cellSize
	}
	return &World{
		bodies:   make(map[BodyID]*body),
		byObject: make(map[*resolv.Object]*body),
		space:    resolv.NewSpace(w, h, cellSize, cellSize),
		nextID:   1,
	}
}

// AddCircle creates a circular dynamic body at rest and returns its handle.
func (w *World) AddCircle(x, y, radius, frictionAir float64) BodyID {
	id := w.nextID
	w.nextID++

	b := &body{
		id:          id,
		pos:         Vec{x, y},
		radius:      radius,
		frictionAir: frictionAir,
		mass:        DefaultDensity * math.Pi * radius * radius,
		obj:         resolv.NewObject(x-radius, y-radius, radius*2, radius*2, bodyTag),
	}
	w.space.Add(b.obj)
	w.bodies[id] = b
	w.byObject[b.obj] = b
	w.order = append(w.order, id)
	return id
}

// Remove detaches a body from the world. Unknown ids are ignored.
func (w *World) Remove(id BodyID) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	w.space.Remove(b.obj)
	delete(w.byObject, b.obj)
	delete(w.bodies, id)

	i := sort.Search(len(w.order), func(i int) bool { return w.order[i] >= id })
	if i < len(w.order) && w.order[i] == id {
		w.order = append(w.order[:i], w.order[i+1:]...)
	}
}

// Has reports whether the body exists.
func (w *World) Has(id BodyID) bool {
	_, ok := w.bodies[id]
	return ok
}

// BodyCount returns the number of bodies in the world.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// ApplyForce accumulates a force for the next Step.
func (w *World) ApplyForce(id BodyID, f Vec) bool {
	b, ok := w.bodies[id]
	if !ok {
		return false
	}
	b.force = b.force.Add(f)
	return true
}

// SetVelocity overwrites a body's velocity (units per second).
func (w *World) SetVelocity(id BodyID, v Vec) bool {
	b, ok := w.bodies[id]
	if !ok {
		return false
	}
	b.vel = v
	return true
}

// SetPosition teleports a body.
func (w *World) SetPosition(id BodyID, p Vec) bool {
	b, ok := w.bodies[id]
	if !ok {
		return false
	}
	b.pos = p
	w.syncObject(b)
	return true
}

// Position returns a body's centre.
func (w *World) Position(id BodyID) (Vec, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return Vec{}, false
	}
	return b.pos, true
}

// Velocity returns a body's velocity in units per second.
func (w *World) Velocity(id BodyID) (Vec, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return Vec{}, false
	}
	return b.vel, true
}

// Mass returns a body's mass.
func (w *World) Mass(id BodyID) (float64, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return 0, false
	}
	return b.mass, true
}

// Step advances every body by dt and then separates overlapping bodies.
// Accumulated forces are cleared.
func (w *World) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	secs := dt.Seconds()
	scale := float64(dt) / float64(BaseStep)

	for _, id := range w.order {
		b := w.bodies[id]

		damping := 1 - b.frictionAir*scale
		if damping < 0 {
			damping = 0
		}
		accel := b.force.Scale(1 / b.mass)
		b.vel = b.vel.Scale(damping).Add(accel.Scale(secs))
		b.pos = b.pos.Add(b.vel.Scale(secs))
		b.force = Vec{}

		w.syncObject(b)
	}

	w.resolveOverlaps()
}

// resolveOverlaps pushes intersecting circles apart along their centre line
// and removes the approaching component of their relative velocity.
func (w *World) resolveOverlaps() {
	for _, id := range w.order {
		a := w.bodies[id]
		collision := a.obj.Check(0, 0, bodyTag)
		if collision == nil {
			continue
		}
		for _, obj := range collision.Objects {
			b, ok := w.byObject[obj]
			if !ok || b.id <= a.id {
				continue // each pair once, lower id first
			}
			if separate(a, b) {
				w.syncObject(a)
				w.syncObject(b)
			}
		}
	}
}

func separate(a, b *body) bool {
	delta := b.pos.Sub(a.pos)
	dist := delta.Len()
	overlap := a.radius + b.radius - dist
	if overlap <= 0 {
		return false
	}

	normal := Vec{1, 0}
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	}

	total := a.mass + b.mass
	a.pos = a.pos.Sub(normal.Scale(overlap * b.mass / total))
	b.pos = b.pos.Add(normal.Scale(overlap * a.mass / total))

	closing := b.vel.Sub(a.vel).Dot(normal)
	if closing < 0 {
		a.vel = a.vel.Add(normal.Scale(closing * b.mass / total))
		b.vel = b.vel.Sub(normal.Scale(closing * a.mass / total))
	}
	return true
}

func (w *World) syncObject(b *body) {
	b.obj.X = b.pos.X - b.radius
	b.obj.Y = b.pos.Y - b.radius
	b.obj.Update()
}
