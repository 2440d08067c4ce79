package game

import (
	"arena/internal/config"
	"arena/internal/physics"
)

// MoveTuning holds the movement constants shared by the server and the
// client prediction engine.
type MoveTuning struct {
	Accel    float64 // units/s² per held axis
	MaxSpeed float64 // units/s
}

// TuningFromConfig extracts movement tuning from the simulation config
func TuningFromConfig(sim config.SimConfig) MoveTuning {
	return MoveTuning{Accel: sim.MoveAccel, MaxSpeed: sim.MaxSpeed}
}

// ApplyMovement turns directional flags into a force on body and caps the
// body's current speed. Diagonals are not normalized. Returns false if the
// body does not exist.
func ApplyMovement(world *physics.World, body physics.BodyID, in Input, tuning MoveTuning) bool {
	mass, ok := world.Mass(body)
	if !ok {
		return false
	}

	var ax, ay float64
	if in.Up {
		ay -= tuning.Accel
	}
	if in.Down {
		ay += tuning.Accel
	}
	if in.Left {
		ax -= tuning.Accel
	}
	if in.Right {
		ax += tuning.Accel
	}
	if ax != 0 || ay != 0 {
		world.ApplyForce(body, physics.Vec{X: ax * mass, Y: ay * mass})
	}

	vel, _ := world.Velocity(body)
	if speed := vel.Len(); tuning.MaxSpeed > 0 && speed > tuning.MaxSpeed {
		world.SetVelocity(body, vel.Scale(tuning.MaxSpeed/speed))
	}
	return true
}

// ClampToArena keeps body inside [radius, dim-radius] on both axes.
// When a correction happens the body is stopped so it does not keep pushing
// into the wall. Returns the resulting position and whether it was clamped.
func ClampToArena(world *physics.World, body physics.BodyID, radius, width, height float64) (physics.Vec, bool) {
	pos, ok := world.Position(body)
	if !ok {
		return pos, false
	}

	clamped := pos
	switch {
	case clamped.X < radius:
		clamped.X = radius
	case clamped.X > width-radius:
		clamped.X = width - radius
	}
	switch {
	case clamped.Y < radius:
		clamped.Y = radius
	case clamped.Y > height-radius:
		clamped.Y = height - radius
	}

	if clamped == pos {
		return pos, false
	}
	world.SetPosition(body, clamped)
	world.SetVelocity(body, physics.Vec{})
	return clamped, true
}
