package queue

import (
	"container/heap"
	"sync"
)

// Queue is a thread-safe priority queue of WorkItems ordered by Lamport
// value ascending, FIFO on ties. Single producer (ConnectionService),
// single consumer (ResponseService), but Enqueue/Poll tolerate arbitrary
// interleaving without corruption.
type Queue struct {
	mu      sync.Mutex
	heap    itemHeap
	nextSeq int64
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue adds item to the queue. item.seq is stamped with arrival order
// so that equal Lamport values are dequeued FIFO.
func (q *Queue) Enqueue(item *WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, item)
}

// Poll removes and returns the lowest-Lamport (FIFO on ties) item, or nil
// if the queue is empty. Never blocks.
func (q *Queue) Poll() *WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*WorkItem)
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// itemHeap implements container/heap.Interface over *WorkItem, ordered by
// (RemoteLamport, seq) ascending.
type itemHeap []*WorkItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].RemoteLamport != h[j].RemoteLamport {
		return h[i].RemoteLamport < h[j].RemoteLamport
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(*WorkItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
