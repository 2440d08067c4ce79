package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Ring buffer size
	MaxEventsPerSec    = 5000                   // Global rate limit
	MaxEventsPerEntity = 60                     // Per-entity rate limit per second
	BatchFlushSize     = 128                    // Events per batch write
	BatchFlushInterval = 250 * time.Millisecond // How often to flush
	EntityLimiterTTL   = 2 * time.Minute        // Idle time before a limiter is dropped
)

// EventLog is a bounded, rate-limited audit trail. Emit never blocks the
// tick loop: events that exceed the rate or overflow the ring are dropped
// and counted. A background writer appends batches to a JSONL file.
type EventLog struct {
	mu   sync.Mutex
	ring [EventBufferSize]Event
	head uint64 // next sequence to assign
	tail uint64 // oldest unflushed sequence

	globalLimiter  *rate.Limiter
	entityLimiters map[EntityID]*entityLimiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file *os.File
	out  *bufio.Writer

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

type entityLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter:  rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		entityLimiters: make(map[EntityID]*entityLimiter),
		stopChan:       make(chan struct{}),
	}
}

// Start opens filePath for append and begins the async writer.
// An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		el.file = file
		el.out = bufio.NewWriter(file)
	}

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	if !el.running.Load() {
		return
	}
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		if el.file != nil {
			el.out.Flush()
			el.file.Close()
		}
	})
}

// Emit records an event. Returns false if it was rate limited or the log
// is not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if event.EntityID != 0 && !el.entityAllow(event.EntityID) {
		el.droppedCount.Add(1)
		return false
	}

	// Overwrite the oldest unflushed event when the ring is full
	if el.head-el.tail >= EventBufferSize {
		el.tail++
		el.droppedCount.Add(1)
	}

	el.head++
	event.Sequence = el.head
	el.ring[el.head%EventBufferSize] = event
	el.totalCount.Add(1)
	return true
}

// EmitSimple builds and emits an event in one call
func (el *EventLog) EmitSimple(eventType EventType, tick uint64, entity EntityID, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tick, entity, payload))
}

// entityAllow applies the per-entity limit. Caller holds el.mu.
func (el *EventLog) entityAllow(id EntityID) bool {
	now := time.Now()
	entry, ok := el.entityLimiters[id]
	if !ok {
		entry = &entityLimiter{limiter: rate.NewLimiter(MaxEventsPerEntity, MaxEventsPerEntity/2)}
		el.entityLimiters[id] = entry
	}
	entry.lastUsed = now
	return entry.limiter.AllowN(now, 1)
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	lastSweep := time.Now()

	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case now := <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
			if now.Sub(lastSweep) >= EntityLimiterTTL {
				el.sweepLimiters(now)
				lastSweep = now
			}
		}
	}
}

// sweepLimiters drops limiters of entities that have gone quiet
func (el *EventLog) sweepLimiters(now time.Time) {
	el.mu.Lock()
	defer el.mu.Unlock()
	for id, entry := range el.entityLimiters {
		if now.Sub(entry.lastUsed) > EntityLimiterTTL {
			delete(el.entityLimiters, id)
		}
	}
}

// collectBatch drains up to BatchFlushSize events from the ring
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.tail < el.head && len(batch) < BatchFlushSize {
		el.tail++
		batch = append(batch, el.ring[el.tail%EventBufferSize])
	}
	return batch
}

// flushBatch appends events as newline-delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	if el.out == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.out.Write(data)
		el.out.WriteByte('\n')
		el.writtenCount.Add(1)
	}
	el.out.Flush()
}

// EventLogStats reports event log health
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Written uint64 `json:"written"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// GetStats returns counters for monitoring
func (el *EventLog) GetStats() EventLogStats {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()

	return EventLogStats{
		Total:   el.totalCount.Load(),
		Dropped: el.droppedCount.Load(),
		Written: el.writtenCount.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}
