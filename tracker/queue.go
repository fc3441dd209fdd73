package tracker

import "gocv.io/x/gocv"

// MatchedFrame is one slot of tracking history: the timestep, the instances
// that received tracks at that timestep, and optionally the frame image
// (needed only by the flow candidate maker for the next step's optical flow).
type MatchedFrame struct {
	T         int
	Instances []*Instance
	// Img is owned by the queue; it is a clone of the caller's frame and is
	// released when the entry is evicted. May be empty.
	Img gocv.Mat
}

// MatchQueue is the sliding window of recent match results: a fixed-capacity
// FIFO that evicts its oldest entry on append past capacity. Capacity 0 means
// no history is retained at all.
type MatchQueue struct {
	capacity int
	entries  []MatchedFrame
}

// NewMatchQueue creates a queue holding at most capacity entries.
func NewMatchQueue(capacity int) *MatchQueue {
	return &MatchQueue{
		capacity: capacity,
		entries:  make([]MatchedFrame, 0, capacity),
	}
}

// Len returns the number of stored entries.
func (q *MatchQueue) Len() int {
	return len(q.entries)
}

// Entries returns the stored entries ordered oldest to newest.
// The slice is the queue's own backing storage, callers must not retain it
// across Append calls.
func (q *MatchQueue) Entries() []MatchedFrame {
	return q.entries
}

// Last returns the most recent entry, if any.
func (q *MatchQueue) Last() (MatchedFrame, bool) {
	if len(q.entries) == 0 {
		return MatchedFrame{}, false
	}
	return q.entries[len(q.entries)-1], true
}

// Append pushes a new entry, evicting (and releasing) the oldest one when the
// queue is at capacity. With capacity 0 the entry is released immediately.
func (q *MatchQueue) Append(entry MatchedFrame) {
	if q.capacity == 0 {
		closeFrame(&entry)
		return
	}
	if len(q.entries) >= q.capacity {
		closeFrame(&q.entries[0])
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Close releases every stored frame image.
func (q *MatchQueue) Close() {
	for i := range q.entries {
		closeFrame(&q.entries[i])
	}
	q.entries = q.entries[:0]
}

func closeFrame(entry *MatchedFrame) {
	if !entry.Img.Closed() {
		entry.Img.Close()
	}
}
