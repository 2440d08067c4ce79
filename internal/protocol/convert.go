package protocol

import (
	"arena/internal/game"
)

// FromSnapshot builds the per-tick state update
func FromSnapshot(snap *game.GameSnapshot) GameState {
	state := GameState{
		Tick:        snap.Tick,
		Players:     make([]PlayerState, len(snap.Players)),
		Projectiles: make([]ProjectileState, len(snap.Projectiles)),
	}
	for i := range snap.Players {
		state.Players[i] = playerState(&snap.Players[i], false)
	}
	for i, p := range snap.Projectiles {
		state.Projectiles[i] = ProjectileState{
			ID:      p.ID,
			Type:    p.Type,
			X:       p.X,
			Y:       p.Y,
			Angle:   p.Angle,
			OwnerID: p.OwnerID,
		}
	}
	return state
}

// RosterFromSnapshot builds a roster update, which also carries skins
func RosterFromSnapshot(snap *game.GameSnapshot) []PlayerState {
	roster := make([]PlayerState, len(snap.Players))
	for i := range snap.Players {
		roster[i] = playerState(&snap.Players[i], true)
	}
	return roster
}

func playerState(p *game.PlayerSnapshot, withSkin bool) PlayerState {
	ps := PlayerState{
		ID:           p.ID,
		Name:         p.Name,
		Health:       p.Health,
		MaxHealth:    p.MaxHealth,
		X:            p.X,
		Y:            p.Y,
		Angle:        p.Angle,
		Score:        p.Score,
		Eliminations: p.Eliminations,
		DamageDealt:  p.DamageDealt,
		Eliminated:   p.Eliminated,
	}
	if withSkin {
		ps.Skin = p.Skin
	}
	if p.HasWeapon {
		w := p.Weapon
		ps.EquippedWeapon = &WeaponState{
			ID:              w.ItemID,
			Name:            w.Name,
			WeaponType:      w.WeaponType,
			CurrentAmmo:     w.CurrentAmmo,
			Capacity:        w.Capacity,
			ReserveAmmo:     w.ReserveAmmo,
			ReserveCapacity: w.ReserveCapacity,
			Reloading:       w.Reloading,
		}
	}
	return ps
}

// ToInput converts a wire input into the engine's input
func ToInput(m InputMessage) game.Input {
	return game.Input{
		Up:     m.Up,
		Down:   m.Down,
		Left:   m.Left,
		Right:  m.Right,
		MouseX: m.Mouse.X,
		MouseY: m.Mouse.Y,
		Fire:   m.Mouse.Down,
		Angle:  m.Angle,
		Seq:    m.Seq,
	}
}

// FromInput converts an engine input into its wire form
func FromInput(in game.Input) InputMessage {
	return InputMessage{
		Up:    in.Up,
		Down:  in.Down,
		Left:  in.Left,
		Right: in.Right,
		Mouse: Mouse{X: in.MouseX, Y: in.MouseY, Down: in.Fire},
		Angle: in.Angle,
		Seq:   in.Seq,
	}
}
