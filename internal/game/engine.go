package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"arena/internal/config"
	"arena/internal/game/spatial"
	"arena/internal/physics"
)

// EliminationBonus is added to the shooter's score on an elimination
const EliminationBonus = 100

// Broadcaster receives every published snapshot. snap is only valid for
// the duration of the call; implementations must serialize it before
// returning and must not call back into the engine.
type Broadcaster interface {
	BroadcastState(snap *GameSnapshot)
}

// TickReport summarizes one tick for metrics
type TickReport struct {
	Tick        uint64
	Duration    time.Duration // wall time spent simulating
	Players     int
	Projectiles int
	Fired       int
	Hits        int
}

// EngineConfig contains everything the simulation depends on
type EngineConfig struct {
	Arena      config.ArenaConfig
	Sim        config.SimConfig
	Limits     config.ResourceLimits
	MaxPlayers int
	Seed       int64 // 0 picks a time-based seed
}

// EngineConfigFrom builds an engine configuration from the app config
func EngineConfigFrom(cfg config.AppConfig) EngineConfig {
	return EngineConfig{
		Arena:      cfg.Arena,
		Sim:        cfg.Sim,
		Limits:     cfg.Limits,
		MaxPlayers: cfg.Server.MaxPlayers,
	}
}

type commandKind uint8

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdReload
	cmdSkin
	cmdEquip
)

// command is a session request applied at the next tick boundary
type command struct {
	kind commandKind
	id   EntityID
	arg  string // name, skin or item id
}

// Engine is the authoritative arena simulation.
//
// Only the tick loop mutates players, projectiles and the physics world.
// Transport handlers talk to it through the input store and the command
// queue, both of which are applied or read at tick boundaries.
type Engine struct {
	mu  sync.RWMutex
	cfg EngineConfig

	world       *physics.World
	players     map[EntityID]*Player
	order       []EntityID // ascending; iteration and hit order
	projectiles []*Projectile

	// Hit-test broad phase, rebuilt every tick
	grid    *spatial.SpatialGrid
	hitList []*Player

	inputs *InputStore

	cmdMu    sync.Mutex
	commands []command
	applying []command

	nextEntity     atomic.Uint32
	sessions       atomic.Int32
	nextProjectile uint32

	tuning  MoveTuning
	dt      time.Duration
	tick    uint64
	simTime time.Duration

	rng *rand.Rand

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Stats
	shotsFired          uint64
	hits                uint64
	totalEliminations   uint64
	invariantViolations uint64

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	broadcaster  Broadcaster
	onTick       func(TickReport)
}

// NewEngine creates an arena engine. Nothing runs until Start or Step.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = config.DefaultServer().MaxPlayers
	}
	if cfg.Limits.MaxProjectiles <= 0 {
		cfg.Limits.MaxProjectiles = config.DefaultLimits().MaxProjectiles
	}
	if len(cfg.Arena.Loadout) == 0 {
		cfg.Arena.Loadout = []string{StartingWeapon}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Cells at least as wide as a hit diameter keep queries to 3x3 cells
	cellSize := math.Max(64, cfg.Arena.HitRadius*2)

	return &Engine{
		cfg:          cfg,
		world:        physics.NewWorld(cfg.Arena.Width, cfg.Arena.Height),
		players:      make(map[EntityID]*Player),
		projectiles:  make([]*Projectile, 0, cfg.Limits.MaxProjectiles),
		grid:         spatial.NewSpatialGrid(cfg.Arena.Width, cfg.Arena.Height, cellSize, cfg.MaxPlayers),
		hitList:      make([]*Player, 0, cfg.MaxPlayers),
		inputs:       NewInputStore(),
		tuning:       TuningFromConfig(cfg.Sim),
		dt:           cfg.Sim.TickInterval(),
		rng:          rand.New(rand.NewSource(seed)),
		tickRate:     int(time.Second / cfg.Sim.TickInterval()),
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(cfg.MaxPlayers, cfg.Limits.MaxProjectiles),
		eventLog:     NewEventLog(),
	}
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// SetBroadcaster installs the snapshot consumer. Call before Start.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	e.broadcaster = b
	e.mu.Unlock()
}

// SetTickObserver installs a callback invoked after every tick. Call before Start.
func (e *Engine) SetTickObserver(fn func(TickReport)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(e.dt)

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.Step()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Arena engine started at %d TPS (%.0fx%.0f)", e.tickRate, e.cfg.Arena.Width, e.cfg.Arena.Height)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Arena engine stopped")
}

// =============================================================================
// SESSION COMMANDS (any goroutine)
// =============================================================================

// Connect reserves an entity id for a new session. The player appears at
// the next tick boundary. Returns false when the arena is full.
func (e *Engine) Connect(name string) (EntityID, bool) {
	for {
		n := e.sessions.Load()
		if int(n) >= e.cfg.MaxPlayers {
			return 0, false
		}
		if e.sessions.CompareAndSwap(n, n+1) {
			break
		}
	}
	id := EntityID(e.nextEntity.Add(1))
	e.enqueue(command{kind: cmdConnect, id: id, arg: name})
	return id, true
}

// Disconnect removes the player at the next tick boundary
func (e *Engine) Disconnect(id EntityID) {
	e.enqueue(command{kind: cmdDisconnect, id: id})
}

// SubmitInput overwrites the latest input for id
func (e *Engine) SubmitInput(id EntityID, in Input) bool {
	return e.inputs.Submit(id, in)
}

// RequestReload asks the equipped weapon to start reloading
func (e *Engine) RequestReload(id EntityID) {
	e.enqueue(command{kind: cmdReload, id: id})
}

// RequestSkin queues a skin change. Disallowed skins are rejected here.
func (e *Engine) RequestSkin(id EntityID, skin string) bool {
	if !ValidSkin(skin) {
		return false
	}
	e.enqueue(command{kind: cmdSkin, id: id, arg: skin})
	return true
}

// RequestEquip queues equipping a carried weapon
func (e *Engine) RequestEquip(id EntityID, itemID string) {
	e.enqueue(command{kind: cmdEquip, id: id, arg: itemID})
}

func (e *Engine) enqueue(c command) {
	e.cmdMu.Lock()
	e.commands = append(e.commands, c)
	e.cmdMu.Unlock()
}

// =============================================================================
// TICK
// =============================================================================

// Step advances the arena by exactly one fixed timestep and publishes a
// snapshot. Start calls it from the ticker; tests call it directly.
func (e *Engine) Step() {
	started := time.Now()

	e.mu.Lock()
	e.tick++
	e.simTime = e.clock(e.tick)
	report := TickReport{Tick: e.tick}

	roster := e.applyCommands()
	e.respawnDue()
	report.Fired = e.applyInputs()
	e.advanceProjectiles()
	report.Hits = e.resolveHits()
	e.world.Step(e.dt)
	e.syncBodies()
	e.updateReloads()

	snap := e.produceSnapshot(roster)
	report.Players = len(e.players)
	report.Projectiles = len(e.projectiles)
	report.Duration = time.Since(started)

	broadcaster := e.broadcaster
	onTick := e.onTick
	e.mu.Unlock()

	if broadcaster != nil {
		broadcaster.BroadcastState(snap)
	}
	if onTick != nil {
		onTick(report)
	}
}

// clock converts a tick number to simulated time without drift
func (e *Engine) clock(tick uint64) time.Duration {
	return time.Duration(tick * uint64(time.Second) / uint64(e.tickRate))
}

// applyCommands drains the command queue. Returns true if the roster changed.
func (e *Engine) applyCommands() bool {
	e.cmdMu.Lock()
	e.applying, e.commands = e.commands, e.applying[:0]
	e.cmdMu.Unlock()

	roster := false
	for _, c := range e.applying {
		switch c.kind {
		case cmdConnect:
			e.admit(c.id, c.arg)
			roster = true

		case cmdDisconnect:
			if e.remove(c.id) {
				roster = true
			}

		case cmdReload:
			p, ok := e.players[c.id]
			if !ok || !p.Alive() {
				continue
			}
			if w := p.EquippedWeapon(); w != nil && w.StartReload(e.simTime) {
				e.eventLog.EmitSimple(EventTypeReload, e.tick, p.ID,
					ReloadPayload{Weapon: w.Spec.Type, Current: w.CurrentAmmo, Reserve: w.ReserveAmmo})
			}

		case cmdSkin:
			if p, ok := e.players[c.id]; ok && p.SetSkin(c.arg) {
				e.eventLog.EmitSimple(EventTypeSkin, e.tick, p.ID, SkinPayload{Skin: p.Skin})
				roster = true
			}

		case cmdEquip:
			if p, ok := e.players[c.id]; ok {
				p.Equip(c.arg)
			}
		}
	}
	e.applying = e.applying[:0]
	return roster
}

// admit creates the player, its body and its loadout
func (e *Engine) admit(id EntityID, name string) {
	p := NewPlayer(id, PlayerOptions{
		Name:           name,
		Skin:           Skins[e.rng.Intn(len(Skins))],
		MaxHealth:      e.cfg.Arena.MaxHealth,
		InventorySlots: e.cfg.Arena.InventorySlots,
	})
	p.X, p.Y = e.spawnPoint()
	p.Body = e.world.AddCircle(p.X, p.Y, e.cfg.Arena.PlayerRadius, e.cfg.Sim.FrictionAir)

	for _, weaponType := range e.cfg.Arena.Loadout {
		spec, ok := Weapons[weaponType]
		if !ok {
			continue
		}
		item := NewWeaponItem(spec)
		if p.AddToInventory(item) && p.Equipped == nil {
			p.Equip(item.ID)
		}
	}

	e.players[id] = p
	i := sort.Search(len(e.order), func(i int) bool { return e.order[i] >= id })
	e.order = append(e.order, 0)
	copy(e.order[i+1:], e.order[i:])
	e.order[i] = id
	e.inputs.Open(id)

	e.eventLog.EmitSimple(EventTypeJoin, e.tick, id,
		JoinPayload{Name: p.Name, Skin: p.Skin, SpawnX: p.X, SpawnY: p.Y})
	log.Printf("👤 Player joined: %s (#%d)", p.Name, id)
}

// remove detaches the player's body and drops it. Projectiles it fired
// keep flying.
func (e *Engine) remove(id EntityID) bool {
	p, ok := e.players[id]
	if !ok {
		return false
	}
	e.world.Remove(p.Body)
	delete(e.players, id)
	i := sort.Search(len(e.order), func(i int) bool { return e.order[i] >= id })
	if i < len(e.order) && e.order[i] == id {
		e.order = append(e.order[:i], e.order[i+1:]...)
	}
	e.inputs.Close(id)
	e.sessions.Add(-1)

	e.eventLog.EmitSimple(EventTypeLeave, e.tick, id,
		LeavePayload{Eliminations: p.Eliminations, DamageDealt: p.DamageDealt})
	log.Printf("👋 Player left: %s (#%d)", p.Name, id)
	return true
}

func (e *Engine) spawnPoint() (float64, float64) {
	r := e.cfg.Arena.PlayerRadius
	x := r + e.rng.Float64()*math.Max(0, e.cfg.Arena.Width-2*r)
	y := r + e.rng.Float64()*math.Max(0, e.cfg.Arena.Height-2*r)
	return x, y
}

// placePlayer teleports a player and stops its body
func (e *Engine) placePlayer(p *Player, x, y float64) {
	e.world.SetPosition(p.Body, physics.Vec{X: x, Y: y})
	e.world.SetVelocity(p.Body, physics.Vec{})
	p.X, p.Y = x, y
}

// respawnDue brings back eliminated players whose timer elapsed
func (e *Engine) respawnDue() {
	for _, id := range e.order {
		p := e.players[id]
		if !p.Eliminated || e.simTime < p.respawnAt {
			continue
		}
		x, y := e.spawnPoint()
		e.placePlayer(p, x, y)
		p.Health = p.MaxHealth
		p.Eliminated = false
		p.RefillWeapons()

		e.eventLog.EmitSimple(EventTypeRespawn, e.tick, p.ID, RespawnPayload{SpawnX: x, SpawnY: y})
	}
}

// applyInputs applies each live player's latest input: facing, movement
// force and firing. Returns the number of projectiles spawned.
func (e *Engine) applyInputs() int {
	fired := 0
	for _, id := range e.order {
		p := e.players[id]
		if !p.Alive() {
			continue
		}
		in, ok := e.inputs.Latest(id)
		if !ok {
			continue
		}
		if !e.world.Has(p.Body) {
			e.invariant("player %d has no physics body during input", id)
			continue
		}

		if !math.IsNaN(in.Angle) && !math.IsInf(in.Angle, 0) {
			p.Angle = in.Angle
		}
		ApplyMovement(e.world, p.Body, in, e.tuning)

		if in.Fire && e.fire(p) {
			fired++
		}
	}
	return fired
}

// fire spawns a projectile if the equipped weapon allows it
func (e *Engine) fire(p *Player) bool {
	w := p.EquippedWeapon()
	if w == nil || !w.CanFire(e.simTime) {
		return false
	}
	if len(e.projectiles) >= e.cfg.Limits.MaxProjectiles {
		return false
	}
	if !w.Fire(e.simTime) {
		return false
	}

	e.nextProjectile++
	offset := e.cfg.Arena.PlayerRadius + e.cfg.Arena.MuzzleOffset
	proj := NewProjectile(e.nextProjectile, p, w.Spec, offset, e.simTime)
	e.projectiles = append(e.projectiles, proj)
	e.shotsFired++

	e.eventLog.EmitSimple(EventTypeFire, e.tick, p.ID, FirePayload{
		ProjectileID: proj.ID,
		Weapon:       w.Spec.Type,
		Angle:        proj.Angle,
		AmmoLeft:     w.CurrentAmmo,
	})
	return true
}

// advanceProjectiles moves every projectile and drops the spent ones.
// Zero-allocation in-place filtering.
func (e *Engine) advanceProjectiles() {
	n := 0
	for _, proj := range e.projectiles {
		if proj.Advance(e.dt) && proj.InBounds(e.cfg.Arena.Width, e.cfg.Arena.Height) {
			e.projectiles[n] = proj
			n++
			continue
		}
		proj.Deactivate()
	}
	e.truncateProjectiles(n)
}

// resolveHits tests every projectile against live players other than its
// owner. Candidates are checked in ascending id order and the first one
// inside the hit radius takes the damage. Returns the number of hits.
func (e *Engine) resolveHits() int {
	e.grid.Clear()
	e.hitList = e.hitList[:0]
	for _, id := range e.order {
		p := e.players[id]
		if p.Alive() {
			e.grid.Insert(uint32(len(e.hitList)), p.X, p.Y)
			e.hitList = append(e.hitList, p)
		}
	}

	radius := e.cfg.Arena.HitRadius
	hits := 0
	n := 0
	for _, proj := range e.projectiles {
		if target := e.firstHit(proj, radius); target != nil {
			e.applyHit(proj, target)
			proj.Deactivate()
			hits++
			continue
		}
		e.projectiles[n] = proj
		n++
	}
	e.truncateProjectiles(n)
	return hits
}

func (e *Engine) firstHit(proj *Projectile, radius float64) *Player {
	for _, idx := range e.grid.QueryRadius(proj.X, proj.Y, radius) {
		p := e.hitList[idx]
		if p.ID == proj.OwnerID || !p.Alive() {
			continue
		}
		dx := p.X - proj.X
		dy := p.Y - proj.Y
		if dx*dx+dy*dy < radius*radius {
			return p
		}
	}
	return nil
}

func (e *Engine) applyHit(proj *Projectile, target *Player) {
	applied := target.TakeDamage(proj.Damage)
	owner := e.players[proj.OwnerID] // nil once the shooter left
	if owner != nil {
		owner.DamageDealt += applied
		owner.Score += applied
	}
	e.hits++

	e.eventLog.EmitSimple(EventTypeHit, e.tick, proj.OwnerID, HitPayload{
		ProjectileID: proj.ID,
		TargetID:     target.ID,
		Damage:       applied,
		TargetHealth: target.Health,
	})

	if applied > 0 && target.Health == 0 {
		e.eliminate(target, owner)
	}
}

func (e *Engine) eliminate(target, owner *Player) {
	target.Eliminated = true
	target.respawnAt = e.simTime + e.cfg.Arena.RespawnDelay
	e.world.SetVelocity(target.Body, physics.Vec{})
	e.totalEliminations++

	if owner == nil {
		log.Printf("💀 %s eliminated by a departed player", target.Name)
		return
	}
	owner.Eliminations++
	owner.Score += EliminationBonus

	e.eventLog.EmitSimple(EventTypeElimination, e.tick, owner.ID,
		EliminationPayload{TargetID: target.ID, Eliminations: owner.Eliminations})
	log.Printf("💀 %s eliminated by %s (eliminations: %d)", target.Name, owner.Name, owner.Eliminations)
}

// truncateProjectiles shortens the slice and clears the tail for the GC
func (e *Engine) truncateProjectiles(n int) {
	for i := n; i < len(e.projectiles); i++ {
		e.projectiles[i] = nil
	}
	e.projectiles = e.projectiles[:n]
}

// syncBodies copies positions from the physics world and clamps them to
// the arena.
func (e *Engine) syncBodies() {
	a := e.cfg.Arena
	for _, id := range e.order {
		p := e.players[id]
		pos, ok := e.world.Position(p.Body)
		if !ok {
			e.invariant("player %d has no physics body during sync", id)
			continue
		}
		if clamped, moved := ClampToArena(e.world, p.Body, a.PlayerRadius, a.Width, a.Height); moved {
			pos = clamped
		}
		p.X, p.Y = pos.X, pos.Y
	}
}

// updateReloads advances every equipped weapon's reload timer
func (e *Engine) updateReloads() {
	for _, id := range e.order {
		p := e.players[id]
		w := p.EquippedWeapon()
		if w == nil || !w.UpdateReload(e.simTime) {
			continue
		}
		e.eventLog.EmitSimple(EventTypeReload, e.tick, p.ID, ReloadPayload{
			Weapon:    w.Spec.Type,
			Completed: true,
			Current:   w.CurrentAmmo,
			Reserve:   w.ReserveAmmo,
		})
	}
}

// invariant records a programming defect. Strict mode panics; otherwise
// the caller skips the offending entity.
func (e *Engine) invariant(format string, args ...interface{}) {
	e.invariantViolations++
	if e.cfg.Sim.Strict {
		panic("arena invariant violated: " + fmt.Sprintf(format, args...))
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// produceSnapshot writes the current state into the next pool slot
func (e *Engine) produceSnapshot(roster bool) *GameSnapshot {
	snap := e.snapshotPool.AcquireWrite()
	snap.Tick = e.tick
	snap.SimTime = e.simTime
	snap.RosterChanged = roster

	alive := 0
	for _, id := range e.order {
		p := e.players[id]
		ps := PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Skin:         p.Skin,
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
		if w := p.EquippedWeapon(); w != nil {
			ps.HasWeapon = true
			ps.Weapon = WeaponSnapshot{
				ItemID:          p.Equipped.ID,
				Name:            p.Equipped.Name,
				WeaponType:      w.Spec.Type,
				CurrentAmmo:     w.CurrentAmmo,
				Capacity:        w.Spec.Capacity,
				ReserveAmmo:     w.ReserveAmmo,
				ReserveCapacity: w.Spec.ReserveCapacity,
				Reloading:       w.Reloading(),
			}
		}
		snap.Players = append(snap.Players, ps)
		if p.Alive() {
			alive++
		}
	}

	for _, proj := range e.projectiles {
		snap.Projectiles = append(snap.Projectiles, proj.ToSnapshot())
	}

	snap.PlayerCount = len(snap.Players)
	snap.AliveCount = alive

	e.snapshotPool.PublishWrite()
	return snap
}

// GetSnapshot returns the latest published snapshot without locking.
// Callers that hold on to it past the next tick should Clone it.
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// =============================================================================
// STATS & EVENT LOG
// =============================================================================

// EngineStats is a point-in-time view of engine counters
type EngineStats struct {
	Tick                uint64        `json:"tick"`
	SimTimeMs           int64         `json:"simTimeMs"`
	TickRate            int           `json:"tickRate"`
	Players             int           `json:"players"`
	Projectiles         int           `json:"projectiles"`
	ShotsFired          uint64        `json:"shotsFired"`
	Hits                uint64        `json:"hits"`
	Eliminations        uint64        `json:"eliminations"`
	InvariantViolations uint64        `json:"invariantViolations"`
	Inputs              InputStats    `json:"inputs"`
	EventLog            EventLogStats `json:"eventLog"`
}

// GetStats returns engine counters
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	stats := EngineStats{
		Tick:                e.tick,
		SimTimeMs:           e.simTime.Milliseconds(),
		TickRate:            e.tickRate,
		Players:             len(e.players),
		Projectiles:         len(e.projectiles),
		ShotsFired:          e.shotsFired,
		Hits:                e.hits,
		Eliminations:        e.totalEliminations,
		InvariantViolations: e.invariantViolations,
	}
	e.mu.RUnlock()

	stats.Inputs = e.inputs.Stats()
	stats.EventLog = e.eventLog.GetStats()
	return stats
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.GetStats()
}
