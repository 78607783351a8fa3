package signal

import "github.com/droidstream/signal/pkg/network"

// Queue is the FIFO list of clients awaiting a worker match.
// Arrival order is the only priority; the requested game lives on the
// client entry, not here.
type Queue struct {
	ids []network.Uid
}

func NewQueue() *Queue { return &Queue{} }

// Push appends the id to the tail unless it is already queued.
func (q *Queue) Push(id network.Uid) {
	for _, v := range q.ids {
		if v == id {
			return
		}
	}
	q.ids = append(q.ids, id)
}

// Remove deletes the id wherever it sits, keeping order.
func (q *Queue) Remove(id network.Uid) {
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

// Position returns the 1-based rank of the id, 0 when absent.
func (q *Queue) Position(id network.Uid) int {
	for i, v := range q.ids {
		if v == id {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) Len() int { return len(q.ids) }

func (q *Queue) Has(id network.Uid) bool { return q.Position(id) > 0 }

// Snapshot copies the current order so callers can mutate the queue
// mid-scan without invalidating their iteration.
func (q *Queue) Snapshot() []network.Uid {
	out := make([]network.Uid, len(q.ids))
	copy(out, q.ids)
	return out
}
