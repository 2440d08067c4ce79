package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeJoin
	EventTypeLeave
	EventTypeFire
	EventTypeHit
	EventTypeElimination
	EventTypeReload
	EventTypeRespawn
	EventTypeSkin
)

// EventVersion for backwards compatibility when reading old logs
const EventVersion uint8 = 1

// Event is one line of the audit log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // wall clock, unix nano
	Sequence  uint64          `json:"sequence"`
	Tick      uint64          `json:"tick"`
	EntityID  EntityID        `json:"entityId,omitempty"` // source entity, used for rate limiting
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeJoin:
		return "join"
	case EventTypeLeave:
		return "leave"
	case EventTypeFire:
		return "fire"
	case EventTypeHit:
		return "hit"
	case EventTypeElimination:
		return "elimination"
	case EventTypeReload:
		return "reload"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeSkin:
		return "skin"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the type by name so log lines are greppable
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// JoinPayload is logged when a player is admitted
type JoinPayload struct {
	Name   string  `json:"name"`
	Skin   string  `json:"skin"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// LeavePayload is logged when a player disconnects
type LeavePayload struct {
	Eliminations int `json:"eliminations"`
	DamageDealt  int `json:"damageDealt"`
}

// FirePayload is logged for every projectile spawned
type FirePayload struct {
	ProjectileID uint32  `json:"projectileId"`
	Weapon       string  `json:"weapon"`
	Angle        float64 `json:"angle"`
	AmmoLeft     int     `json:"ammoLeft"`
}

// HitPayload is logged when a projectile connects
type HitPayload struct {
	ProjectileID uint32   `json:"projectileId"`
	TargetID     EntityID `json:"targetId"`
	Damage       int      `json:"damage"`
	TargetHealth int      `json:"targetHealth"`
}

// EliminationPayload is logged when a hit drops a player to zero
type EliminationPayload struct {
	TargetID     EntityID `json:"targetId"`
	Eliminations int      `json:"eliminations"`
}

// ReloadPayload is logged when a reload starts or completes
type ReloadPayload struct {
	Weapon    string `json:"weapon"`
	Completed bool   `json:"completed"`
	Current   int    `json:"current"`
	Reserve   int    `json:"reserve"`
}

// RespawnPayload is logged when an eliminated player returns
type RespawnPayload struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// SkinPayload is logged on an accepted skin change
type SkinPayload struct {
	Skin string `json:"skin"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current wall-clock timestamp
func NewEvent(eventType EventType, tick uint64, entity EntityID, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Tick:      tick,
		EntityID:  entity,
		Payload:   EncodePayload(payload),
	}
}
