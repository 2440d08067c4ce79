package prediction

import (
	"arena/internal/protocol"
)

const pendingBufferSize = 64

// InputRecord stores a sent input alongside the predicted position right
// after it was applied.
type InputRecord struct {
	Input      protocol.InputMessage
	PredictedX float64
	PredictedY float64
}

// PendingBuffer is a ring of inputs sent since the last reconciliation.
// Once more than pendingBufferSize inputs are outstanding the oldest are
// overwritten.
type PendingBuffer struct {
	history [pendingBufferSize]InputRecord
	first   uint32 // oldest outstanding sequence
	nextSeq uint32
}

func newPendingBuffer() PendingBuffer {
	return PendingBuffer{first: 1, nextSeq: 1}
}

// Next assigns the next sequence number. Sequence 0 is never used.
func (pb *PendingBuffer) Next() uint32 {
	seq := pb.nextSeq
	pb.nextSeq++
	return seq
}

// Store records an input under its sequence number
func (pb *PendingBuffer) Store(in protocol.InputMessage, predX, predY float64) {
	pb.history[in.Seq%pendingBufferSize] = InputRecord{Input: in, PredictedX: predX, PredictedY: predY}
	if pb.nextSeq-pb.first > pendingBufferSize {
		pb.first = pb.nextSeq - pendingBufferSize
	}
}

// Get retrieves a stored record by sequence number. Returns false if it
// was cleared or overwritten.
func (pb *PendingBuffer) Get(seq uint32) (InputRecord, bool) {
	if seq < pb.first || seq >= pb.nextSeq {
		return InputRecord{}, false
	}
	record := pb.history[seq%pendingBufferSize]
	if record.Input.Seq != seq {
		return InputRecord{}, false
	}
	return record, true
}

// Len returns the number of outstanding inputs
func (pb *PendingBuffer) Len() int {
	return int(pb.nextSeq - pb.first)
}

// Clear drops every outstanding input and returns how many there were
func (pb *PendingBuffer) Clear() int {
	n := pb.Len()
	pb.first = pb.nextSeq
	return n
}

// NextSeq returns the sequence number the next input will get
func (pb *PendingBuffer) NextSeq() uint32 {
	return pb.nextSeq
}
