package game

import (
	"sync/atomic"
	"time"
)

// WeaponSnapshot is the ammo summary of an equipped weapon
type WeaponSnapshot struct {
	ItemID          string
	Name            string
	WeaponType      string
	CurrentAmmo     int
	Capacity        int
	ReserveAmmo     int
	ReserveCapacity int
	Reloading       bool
}

// PlayerSnapshot is an immutable copy of player state.
// Uses value types (not pointers) to ensure immutability.
type PlayerSnapshot struct {
	ID           EntityID
	Name         string
	Skin         string
	Health       int
	MaxHealth    int
	X, Y         float64
	Angle        float64
	Score        int
	Eliminations int
	DamageDealt  int
	Eliminated   bool

	HasWeapon bool
	Weapon    WeaponSnapshot
}

// GameSnapshot is the authoritative state published once per tick.
// Players are in ascending id order.
type GameSnapshot struct {
	Sequence  uint64    // Monotonic sequence for ordering
	Timestamp time.Time // Wall clock when the snapshot was produced
	Tick      uint64
	SimTime   time.Duration

	Players     []PlayerSnapshot
	Projectiles []ProjectileSnapshot

	PlayerCount int
	AliveCount  int

	// RosterChanged is set when players joined, left or changed skin
	// during this tick.
	RosterChanged bool
}

// Player finds a player by id
func (s *GameSnapshot) Player(id EntityID) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Clone returns a deep copy that stays valid after the pool reuses the slot
func (s *GameSnapshot) Clone() GameSnapshot {
	c := *s
	c.Players = append([]PlayerSnapshot(nil), s.Players...)
	c.Projectiles = append([]ProjectileSnapshot(nil), s.Projectiles...)
	return c
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering for lock-free producer/consumer.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(maxPlayers, maxProjectiles int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i] = GameSnapshot{
			Players:     make([]PlayerSnapshot, 0, maxPlayers),
			Projectiles: make([]ProjectileSnapshot, 0, maxProjectiles),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick)
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Players = snap.Players[:0]
	snap.Projectiles = snap.Projectiles[:0]
	snap.RosterChanged = false
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite makes the last acquired slot the one readers see
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest published snapshot. Before the first
// publish it returns an empty snapshot with Sequence 0.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}
