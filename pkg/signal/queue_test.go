package signal

import (
	"testing"

	"github.com/droidstream/signal/pkg/network"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	a, b, c := network.NewUid(), network.NewUid(), network.NewUid()

	q.Push(a)
	q.Push(b)
	q.Push(c)
	q.Push(b) // duplicate, keeps its original slot

	if q.Len() != 3 {
		t.Fatalf("unexpected length: %v (want 3)", q.Len())
	}
	if q.Position(a) != 1 || q.Position(b) != 2 || q.Position(c) != 3 {
		t.Errorf("unexpected positions: %v %v %v", q.Position(a), q.Position(b), q.Position(c))
	}

	q.Remove(b)
	if q.Position(a) != 1 || q.Position(c) != 2 {
		t.Errorf("removal broke order: %v %v", q.Position(a), q.Position(c))
	}
	if q.Has(b) {
		t.Error("removed id still present")
	}
	if q.Position(b) != 0 {
		t.Errorf("absent id has position %v (want 0)", q.Position(b))
	}
}

func TestQueueSnapshotIsStable(t *testing.T) {
	q := NewQueue()
	a, b := network.NewUid(), network.NewUid()
	q.Push(a)
	q.Push(b)

	snap := q.Snapshot()
	q.Remove(a)

	if len(snap) != 2 || snap[0] != a || snap[1] != b {
		t.Errorf("snapshot changed after mutation: %v", snap)
	}
	if q.Len() != 1 {
		t.Errorf("unexpected live length: %v", q.Len())
	}
}
