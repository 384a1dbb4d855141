package core

import (
	"container/heap"

	"github.com/fieldops/logistics-simulator/model"
)

// dispatchQueue orders pending requests by (priority, arrival sequence).
// Lower priority values are more urgent; equal priorities dispatch in
// arrival order.
type dispatchQueue[T any] struct {
	entries queueHeap[T]
	nextSeq int
}

type queueEntry[T any] struct {
	priority model.Priority
	seq      int
	item     T
}

type queueHeap[T any] []queueEntry[T]

func (h queueHeap[T]) Len() int { return len(h) }

func (h queueHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *queueHeap[T]) Push(x any) { *h = append(*h, x.(queueEntry[T])) }

func (h *queueHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func newDispatchQueue[T any]() *dispatchQueue[T] {
	return &dispatchQueue[T]{}
}

func (q *dispatchQueue[T]) Len() int { return q.entries.Len() }

func (q *dispatchQueue[T]) Push(priority model.Priority, item T) {
	heap.Push(&q.entries, queueEntry[T]{priority: priority, seq: q.nextSeq, item: item})
	q.nextSeq++
}

// Pop removes and returns the most urgent request.
func (q *dispatchQueue[T]) Pop() (T, bool) {
	var zero T
	if q.entries.Len() == 0 {
		return zero, false
	}
	entry := heap.Pop(&q.entries).(queueEntry[T])
	return entry.item, true
}

// PopMatching removes and returns the most urgent request accepted by
// match. Skipped requests keep their original priority and sequence, so
// they retain their place in the queue for the next capable vehicle.
func (q *dispatchQueue[T]) PopMatching(match func(T) bool) (T, bool) {
	var zero T
	var skipped []queueEntry[T]
	for q.entries.Len() > 0 {
		entry := heap.Pop(&q.entries).(queueEntry[T])
		if match(entry.item) {
			for _, s := range skipped {
				heap.Push(&q.entries, s)
			}
			return entry.item, true
		}
		skipped = append(skipped, entry)
	}
	for _, s := range skipped {
		heap.Push(&q.entries, s)
	}
	return zero, false
}
