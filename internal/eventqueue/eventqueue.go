// Package eventqueue provides the deterministic priority queue the
// exchange drains on every tick. Adapted from teacher
// internal/engine/eventloop.go's container/heap min-heap: same
// (Timestamp, SeqNo) backbone, generalized with a third tie-break key
// (fixedpoint.EventKind) for the fixed body-kind ordering the spec
// requires when two events land on the same nanosecond.
package eventqueue

import (
	"container/heap"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

// Event is one scheduled occurrence. Body carries the payload — a
// history tick, a trader request, an exchange reply echo, a
// subscription delivery, a subscription re-arm, a wake-up, or a
// session probe — and is opaque to the queue itself.
type Event struct {
	Time  fixedpoint.SimulatedTime
	Kind  fixedpoint.EventKind
	SeqNo uint64
	Body  interface{}
}

// eventHeap is a min-heap ordered by (Time, Kind, SeqNo).
type eventHeap []*Event

func (h eventHeap) Len() int      { return len(h) }
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	if h[i].Kind != h[j].Kind {
		return h[i].Kind < h[j].Kind
	}
	return h[i].SeqNo < h[j].SeqNo
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the deterministic event priority queue. Unlike teacher's
// EventLoop, Queue does not own a handler or a run loop — the exchange
// (internal/exchange) owns dispatch, since replies and subscription
// deliveries generated while handling one event must themselves be
// scheduled with session-aware latency before re-entering the queue.
type Queue struct {
	heap  eventHeap
	seqNo uint64
}

// New returns an empty Queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.heap)
	return q
}

// Push enqueues an event, assigning the next sequence number so that
// insertion order breaks any remaining tie deterministically.
func (q *Queue) Push(t fixedpoint.SimulatedTime, kind fixedpoint.EventKind, body interface{}) {
	q.seqNo++
	heap.Push(&q.heap, &Event{Time: t, Kind: kind, SeqNo: q.seqNo, Body: body})
}

// PushWithSeqNo enqueues an event carrying a pre-assigned sequence
// number, keeping that seqNo rather than assigning a new one and
// raising the queue's counter to it if it is higher. Nothing in this
// module calls it.
func (q *Queue) PushWithSeqNo(e *Event) {
	if e.SeqNo > q.seqNo {
		q.seqNo = e.SeqNo
	}
	heap.Push(&q.heap, e)
}

// Pop removes and returns the earliest-ordered event. Returns nil if
// the queue is empty.
func (q *Queue) Pop() *Event {
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*Event)
}

// Peek returns the earliest-ordered event without removing it, or nil
// if the queue is empty.
func (q *Queue) Peek() *Event {
	if q.heap.Len() == 0 {
		return nil
	}
	return q.heap[0]
}

// Len returns the number of pending events.
func (q *Queue) Len() int { return q.heap.Len() }
