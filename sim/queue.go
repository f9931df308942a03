// Implements the time-bucketed EventQueue. Events scheduled for the same tick
// are processed in registration order; that order is part of the engine's
// determinism contract.

package sim

import (
	"container/heap"
	"slices"
)

// tickHeap is a min-heap of occupied bucket times.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type tickHeap []int64

func (h tickHeap) Len() int           { return len(h) }
func (h tickHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h tickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *tickHeap) Push(x any) {
	*h = append(*h, x.(int64))
}

func (h *tickHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// EventQueue stores pending events bucketed by tick.
// Ordering: tick → registration order within the tick.
type EventQueue struct {
	buckets map[int64][]Event
	ticks   tickHeap
	size    int
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{buckets: make(map[int64][]Event)}
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return q.size
}

// Push appends ev to the bucket of its tick.
func (q *EventQueue) Push(ev Event) {
	t := ev.Timestamp()
	b, ok := q.buckets[t]
	if !ok {
		heap.Push(&q.ticks, t)
	}
	q.buckets[t] = append(b, ev)
	q.size++
}

// Pop removes and returns the oldest-registered event of the earliest tick.
// Returns nil if the queue is empty.
func (q *EventQueue) Pop() Event {
	if q.size == 0 {
		return nil
	}
	t := q.ticks[0]
	b := q.buckets[t]
	ev := b[0]
	if len(b) == 1 {
		delete(q.buckets, t)
		heap.Pop(&q.ticks)
	} else {
		q.buckets[t] = b[1:]
	}
	q.size--
	return ev
}

// Clear discards every pending event.
func (q *EventQueue) Clear() {
	q.buckets = make(map[int64][]Event)
	q.ticks = q.ticks[:0]
	q.size = 0
}

// Events returns the pending events in processing order without removing them.
func (q *EventQueue) Events() []Event {
	ticks := make([]int64, 0, len(q.buckets))
	for t := range q.buckets {
		ticks = append(ticks, t)
	}
	slices.Sort(ticks)
	out := make([]Event, 0, q.size)
	for _, t := range ticks {
		out = append(out, q.buckets[t]...)
	}
	return out
}
