package prediction

import (
	"testing"

	"arena/internal/protocol"
)

// TestPendingBufferStoreAndGet verifies lookups by sequence
func TestPendingBufferStoreAndGet(t *testing.T) {
	pb := newPendingBuffer()

	seq := pb.Next()
	if seq != 1 {
		t.Fatalf("Expected first sequence 1, got %d", seq)
	}
	pb.Store(protocol.InputMessage{Seq: seq, Up: true}, 10, 20)

	rec, ok := pb.Get(seq)
	if !ok || !rec.Input.Up || rec.PredictedX != 10 || rec.PredictedY != 20 {
		t.Errorf("Unexpected record %+v (ok=%v)", rec, ok)
	}
	if _, ok := pb.Get(seq + 1); ok {
		t.Error("Expected no record for an unsent sequence")
	}
}

// TestPendingBufferOverwritesOldest checks the ring bound
func TestPendingBufferOverwritesOldest(t *testing.T) {
	pb := newPendingBuffer()
	for i := 0; i < pendingBufferSize+10; i++ {
		seq := pb.Next()
		pb.Store(protocol.InputMessage{Seq: seq}, 0, 0)
	}

	if pb.Len() != pendingBufferSize {
		t.Errorf("Expected %d outstanding, got %d", pendingBufferSize, pb.Len())
	}
	if _, ok := pb.Get(1); ok {
		t.Error("Expected the oldest input to be overwritten")
	}
	if _, ok := pb.Get(pb.NextSeq() - 1); !ok {
		t.Error("Expected the newest input to be present")
	}
}

// TestPendingBufferClear drops everything outstanding
func TestPendingBufferClear(t *testing.T) {
	pb := newPendingBuffer()
	for i := 0; i < 5; i++ {
		pb.Store(protocol.InputMessage{Seq: pb.Next()}, 0, 0)
	}

	if n := pb.Clear(); n != 5 {
		t.Errorf("Expected 5 cleared, got %d", n)
	}
	if pb.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d", pb.Len())
	}
	if _, ok := pb.Get(5); ok {
		t.Error("Cleared input still retrievable")
	}
}
