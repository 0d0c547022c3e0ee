package exchange

import (
	"container/heap"

	"tradesim/internal/domain"
)

// inflightCommand is a command waiting out its exchange-side latency.
type inflightCommand struct {
	commitNs int64
	seq      uint64 // send order, the tiebreak for equal commit times
	cmd      domain.TradingCommand
}

// inflightHeap is a min-heap ordered by (commitNs, seq), so commands commit
// in latency order with FIFO tiebreaking.
type inflightHeap []inflightCommand

func (h inflightHeap) Len() int { return len(h) }

func (h inflightHeap) Less(i, j int) bool {
	if h[i].commitNs != h[j].commitNs {
		return h[i].commitNs < h[j].commitNs
	}
	return h[i].seq < h[j].seq
}

func (h inflightHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *inflightHeap) Push(x any) { *h = append(*h, x.(inflightCommand)) }

func (h *inflightHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// inflightQueue wraps the heap with a monotonic send sequence.
type inflightQueue struct {
	heap inflightHeap
	seq  uint64
}

func newInflightQueue() *inflightQueue {
	q := &inflightQueue{}
	heap.Init(&q.heap)
	return q
}

// push enqueues a command to commit at commitNs.
func (q *inflightQueue) push(commitNs int64, cmd domain.TradingCommand) {
	q.seq++
	heap.Push(&q.heap, inflightCommand{commitNs: commitNs, seq: q.seq, cmd: cmd})
}

// peekCommit returns the earliest commit time, if any command is queued.
func (q *inflightQueue) peekCommit() (int64, bool) {
	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].commitNs, true
}

// pop removes and returns the earliest command.
func (q *inflightQueue) pop() inflightCommand {
	return heap.Pop(&q.heap).(inflightCommand)
}

func (q *inflightQueue) len() int { return len(q.heap) }

func (q *inflightQueue) reset() {
	q.heap = q.heap[:0]
	q.seq = 0
}
