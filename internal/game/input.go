package game

import (
	"sync"
)

// Input is the latest control state a client reported.
type Input struct {
	Up, Down, Left, Right bool
	MouseX, MouseY        float64
	Fire                  bool
	Angle                 float64 // facing, radians
	Seq                   uint32  // 0 means unsequenced
}

// InputStore keeps only the newest input per entity. Transport handlers
// write to it; the tick loop reads from it. It never touches simulation
// state, so it has its own lock.
type InputStore struct {
	mu      sync.Mutex
	latest  map[EntityID]Input
	lastSeq map[EntityID]uint32
	open    map[EntityID]bool

	accepted uint64
	stale    uint64
	unknown  uint64
}

// NewInputStore creates an empty store
func NewInputStore() *InputStore {
	return &InputStore{
		latest:  make(map[EntityID]Input),
		lastSeq: make(map[EntityID]uint32),
		open:    make(map[EntityID]bool),
	}
}

// Open starts accepting inputs for id
func (s *InputStore) Open(id EntityID) {
	s.mu.Lock()
	s.open[id] = true
	s.mu.Unlock()
}

// Close discards everything held for id
func (s *InputStore) Close(id EntityID) {
	s.mu.Lock()
	delete(s.open, id)
	delete(s.latest, id)
	delete(s.lastSeq, id)
	s.mu.Unlock()
}

// Submit overwrites the latest input for id. Inputs for unknown entities
// and sequenced inputs not newer than the last accepted one are dropped.
func (s *InputStore) Submit(id EntityID, in Input) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open[id] {
		s.unknown++
		return false
	}
	if in.Seq != 0 {
		if last, ok := s.lastSeq[id]; ok && in.Seq <= last {
			s.stale++
			return false
		}
		s.lastSeq[id] = in.Seq
	}
	s.latest[id] = in
	s.accepted++
	return true
}

// Latest returns the newest input for id. Inputs persist until replaced.
func (s *InputStore) Latest(id EntityID) (Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.latest[id]
	return in, ok
}

// InputStats counts submissions by outcome
type InputStats struct {
	Accepted uint64 `json:"accepted"`
	Stale    uint64 `json:"stale"`
	Unknown  uint64 `json:"unknown"`
}

// Stats returns submission counters
func (s *InputStore) Stats() InputStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return InputStats{Accepted: s.accepted, Stale: s.stale, Unknown: s.unknown}
}
