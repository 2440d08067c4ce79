package prediction

import (
	"testing"
	"time"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/physics"
	"arena/internal/protocol"
)

const localID game.EntityID = 7

func newTestPredictor() *Predictor {
	return New(localID, config.DefaultArena(), config.DefaultSim())
}

func stateAt(x, y float64, ammo int) *protocol.GameState {
	return &protocol.GameState{
		Tick: 1,
		Players: []protocol.PlayerState{
			{ID: 3, Name: "other", Health: 100, MaxHealth: 100, X: 10, Y: 10},
			{
				ID: localID, Name: "me", Health: 100, MaxHealth: 100, X: x, Y: y, Angle: 0,
				EquippedWeapon: &protocol.WeaponState{
					ID: "w", WeaponType: "pistol", CurrentAmmo: ammo, Capacity: 10,
					ReserveAmmo: 30, ReserveCapacity: 30,
				},
			},
		},
	}
}

// TestReconcileCreatesBody verifies the first update places the shadow body
func TestReconcileCreatesBody(t *testing.T) {
	p := newTestPredictor()

	if _, ok := p.Position(); ok {
		t.Fatal("Expected no body before the first update")
	}

	c := p.Reconcile(stateAt(500, 600, 10), 0)
	if !c.Found || !c.Created || c.Distance != 0 {
		t.Errorf("Unexpected correction %+v", c)
	}
	if pos, _ := p.Position(); pos != (physics.Vec{X: 500, Y: 600}) {
		t.Errorf("Expected (500, 600), got %+v", pos)
	}
}

// TestReconcileMissingPlayer leaves the predictor untouched
func TestReconcileMissingPlayer(t *testing.T) {
	p := newTestPredictor()
	c := p.Reconcile(&protocol.GameState{Players: []protocol.PlayerState{{ID: 1}}}, 0)
	if c.Found {
		t.Error("Expected the local player to be reported missing")
	}
	if _, ok := p.Position(); ok {
		t.Error("Body created for a missing player")
	}
}

// TestReconcileIsIdempotent checks a drifted body converges in one update
func TestReconcileIsIdempotent(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)

	p.Input(game.Input{Right: true, Down: true}, 0)
	for i := 1; i <= 20; i++ {
		p.Frame(time.Duration(i) * p.dt)
	}
	drifted, _ := p.Position()
	if drifted.X <= 1000 || drifted.Y <= 1000 {
		t.Fatalf("Expected drift down-right, got %+v", drifted)
	}

	state := stateAt(1010, 990, 10)
	first := p.Reconcile(state, time.Second)
	pos1, _ := p.Position()
	vel1, _ := p.Velocity()

	second := p.Reconcile(state, time.Second)
	pos2, _ := p.Position()
	vel2, _ := p.Velocity()

	if first.Distance == 0 {
		t.Error("Expected a non-zero correction after drift")
	}
	if second.Distance != 0 {
		t.Errorf("Expected zero correction on repeat, got %v", second.Distance)
	}
	if pos1 != pos2 || vel1 != vel2 {
		t.Errorf("Repeat update changed state: %+v/%+v vs %+v/%+v", pos1, vel1, pos2, vel2)
	}
	if pos1 != (physics.Vec{X: 1010, Y: 990}) || vel1 != (physics.Vec{}) {
		t.Errorf("Expected hard reset to (1010, 990) at rest, got %+v %+v", pos1, vel1)
	}
}

// TestPendingClearedWithoutReplay verifies inputs are dropped on update
func TestPendingClearedWithoutReplay(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)

	var last uint32
	for i := 0; i < 3; i++ {
		msg := p.Input(game.Input{Left: true}, 0)
		if msg.Seq <= last {
			t.Fatalf("Sequence not increasing: %d after %d", msg.Seq, last)
		}
		last = msg.Seq
	}
	if p.Pending() != 3 {
		t.Fatalf("Expected 3 pending inputs, got %d", p.Pending())
	}

	c := p.Reconcile(stateAt(1000, 1000, 10), 0)
	if c.Dropped != 3 || p.Pending() != 0 {
		t.Errorf("Expected 3 dropped and none pending, got %d/%d", c.Dropped, p.Pending())
	}
	if c.LastSeq != last || c.SentAt != (physics.Vec{X: 1000, Y: 1000}) {
		t.Errorf("Expected newest dropped input #%d sent at (1000, 1000), got #%d at %+v", last, c.LastSeq, c.SentAt)
	}
	if again := p.Reconcile(stateAt(1000, 1000, 10), 0); again.LastSeq != 0 {
		t.Errorf("Nothing was pending, got LastSeq %d", again.LastSeq)
	}
	if pos, _ := p.Position(); pos != (physics.Vec{X: 1000, Y: 1000}) {
		t.Errorf("Pending inputs were replayed: %+v", pos)
	}

	if msg := p.Input(game.Input{}, 0); msg.Seq != last+1 {
		t.Errorf("Expected seq %d after reconcile, got %d", last+1, msg.Seq)
	}
}

// TestNonPositionalFieldsOverwritten checks health and ammo come from the server
func TestNonPositionalFieldsOverwritten(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)
	p.Input(game.Input{Fire: true}, 0)
	if p.Ammo() != 9 {
		t.Fatalf("Expected predicted ammo 9, got %d", p.Ammo())
	}

	state := stateAt(1000, 1000, 4)
	state.Players[1].Health = 35
	state.Players[1].Score = 120
	p.Reconcile(state, time.Second)

	if p.Ammo() != 4 || p.State().Health != 35 || p.State().Score != 120 {
		t.Errorf("Expected server values, got ammo=%d state=%+v", p.Ammo(), p.State())
	}
}

// TestSpeculativeFireRespectsInterval mirrors the server's fire gating
func TestSpeculativeFireRespectsInterval(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*protocol.GameState)
		want  int
	}{
		{"loaded", func(*protocol.GameState) {}, 1},
		{"empty", func(s *protocol.GameState) { s.Players[1].EquippedWeapon.CurrentAmmo = 0 }, 0},
		{"reloading", func(s *protocol.GameState) { s.Players[1].EquippedWeapon.Reloading = true }, 0},
		{"unarmed", func(s *protocol.GameState) { s.Players[1].EquippedWeapon = nil }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPredictor()
			state := stateAt(1000, 1000, 10)
			tt.setup(state)
			p.Reconcile(state, 0)

			p.Input(game.Input{Fire: true}, 0)
			p.Input(game.Input{Fire: true}, 100*time.Millisecond) // inside the 300ms interval

			if got := len(p.Speculative()); got != tt.want {
				t.Errorf("Expected %d speculative projectiles, got %d", tt.want, got)
			}
		})
	}
}

// TestSpeculativeSpawnsAtMuzzle checks the spawn offset
func TestSpeculativeSpawnsAtMuzzle(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)
	p.Input(game.Input{Fire: true, Angle: 0}, 0)

	proj := p.Speculative()[0]
	if proj.X != 1035 || proj.Y != 1000 || proj.OwnerID != localID {
		t.Errorf("Expected spawn at (1035, 1000), got (%.2f, %.2f)", proj.X, proj.Y)
	}
}

// TestSpeculativeAgeCeiling drops projectiles after the maximum age
func TestSpeculativeAgeCeiling(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)
	p.Input(game.Input{Fire: true}, 0)
	p.Input(game.Input{}, 0)

	p.Frame(100 * time.Millisecond)
	if len(p.Speculative()) != 1 {
		t.Fatal("Projectile dropped too early")
	}

	p.Frame(SpeculativeMaxAge)
	if len(p.Speculative()) != 0 {
		t.Error("Expected the projectile to expire at the age ceiling")
	}
}

// TestSpeculativeGraceOnUpdate keeps only very recent projectiles
func TestSpeculativeGraceOnUpdate(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)

	p.Input(game.Input{Fire: true}, 0)
	c := p.Reconcile(stateAt(1000, 1000, 9), 50*time.Millisecond)
	if c.Speculative != 0 || len(p.Speculative()) != 1 {
		t.Fatalf("Young projectile dropped: %+v", c)
	}

	p.Input(game.Input{Fire: true}, 400*time.Millisecond)
	c = p.Reconcile(stateAt(1000, 1000, 8), 450*time.Millisecond)

	if c.Speculative != 1 || len(p.Speculative()) != 1 {
		t.Errorf("Expected the old projectile dropped and the new kept, got %+v (%d left)", c, len(p.Speculative()))
	}
	if p.Speculative()[0].CreatedAt != 400*time.Millisecond {
		t.Errorf("Wrong projectile survived: created at %v", p.Speculative()[0].CreatedAt)
	}
}

// TestShadowMatchesServerMovement runs the shadow body next to a bare world
func TestShadowMatchesServerMovement(t *testing.T) {
	arena := config.DefaultArena()
	sim := config.DefaultSim()
	p := New(localID, arena, sim)
	p.Reconcile(stateAt(1000, 1000, 10), 0)

	world := physics.NewWorld(arena.Width, arena.Height)
	body := world.AddCircle(1000, 1000, arena.PlayerRadius, sim.FrictionAir)
	tuning := game.TuningFromConfig(sim)

	in := game.Input{Up: true, Left: true}
	p.Input(in, 0)
	for i := 1; i <= 30; i++ {
		p.Frame(time.Duration(i) * sim.TickInterval())

		game.ApplyMovement(world, body, in, tuning)
		world.Step(sim.TickInterval())
		game.ClampToArena(world, body, arena.PlayerRadius, arena.Width, arena.Height)
	}

	got, _ := p.Position()
	want, _ := world.Position(body)
	if got != want {
		t.Errorf("Shadow diverged from server rules: %+v vs %+v", got, want)
	}
}

// TestCorrectionReportsSendPosition ties the dropped input to where it was sent
func TestCorrectionReportsSendPosition(t *testing.T) {
	p := newTestPredictor()
	p.Reconcile(stateAt(1000, 1000, 10), 0)

	p.Input(game.Input{Right: true}, 0)
	for i := 1; i <= 10; i++ {
		p.Frame(time.Duration(i) * p.dt)
	}
	sentFrom, _ := p.Position()
	msg := p.Input(game.Input{}, 10*p.dt)

	c := p.Reconcile(stateAt(1000, 1000, 10), 11*p.dt)
	if c.LastSeq != msg.Seq {
		t.Errorf("Expected LastSeq %d, got %d", msg.Seq, c.LastSeq)
	}
	if c.SentAt != sentFrom || c.SentAt.X <= 1000 {
		t.Errorf("Expected send position %+v, got %+v", sentFrom, c.SentAt)
	}
}
