package signal

import (
	"testing"
	"time"

	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/logger"
)

func testWorker(games ...string) *Worker {
	w := NewWorker(&fakeConn{}, time.Now(), logger.Default())
	w.games = games
	w.registered = true
	return w
}

func TestFindAvailableWorker(t *testing.T) {
	r := NewRegistry()

	if w := r.FindAvailableWorker("g1"); w != nil {
		t.Fatal("found a worker in an empty registry")
	}

	first := testWorker("g1", "g2")
	second := testWorker("g1")
	third := testWorker("g3")
	for _, w := range []*Worker{first, second, third} {
		r.AddWorkerConn(w)
		r.RegisterWorker(w)
	}

	if w := r.FindAvailableWorker("g1"); w != first {
		t.Error("first-fit should pick the earliest registered worker")
	}
	first.status = Busy
	if w := r.FindAvailableWorker("g1"); w != second {
		t.Error("busy workers should be skipped")
	}
	if w := r.FindAvailableWorker("g3"); w != third {
		t.Error("catalog match failed")
	}
	if w := r.FindAvailableWorker("nope"); w != nil {
		t.Error("matched a game nobody supports")
	}
	if w := r.FindAvailableWorker(""); w != nil {
		t.Error("matched an empty game id")
	}
}

func TestUnregisteredWorkerIsNotMatchable(t *testing.T) {
	r := NewRegistry()
	w := NewWorker(&fakeConn{}, time.Now(), logger.Default())
	w.games = []string{"g1"}
	r.AddWorkerConn(w)

	if found := r.FindAvailableWorker("g1"); found != nil {
		t.Error("connected but unregistered worker was matched")
	}

	seen := 0
	r.EachWorkerConn(func(*Worker) { seen++ })
	if seen != 1 {
		t.Errorf("connection sweep missed the worker: %v", seen)
	}
}

func TestUserGuards(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	log := logger.Default()

	queued := NewClient(&fakeConn{}, auth.User{Id: "u1"}, now, log)
	queued.state = Queued
	inGame := NewClient(&fakeConn{}, auth.User{Id: "u2"}, now, log)
	inGame.worker = testWorker("g1")
	r.AddClient(queued)
	r.AddClient(inGame)

	if !r.UserQueued("u1", nil) {
		t.Error("queued user not detected")
	}
	if r.UserQueued("u1", queued) {
		t.Error("a session should not guard against itself")
	}
	if !r.UserInGame("u2", nil) {
		t.Error("in-game user not detected")
	}
	if r.UserInGame("u3", nil) || r.UserQueued("u3", nil) {
		t.Error("unknown user tripped a guard")
	}
}

func TestRemoveWorkerKeepsOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := testWorker("g"), testWorker("g"), testWorker("g")
	for _, w := range []*Worker{a, b, c} {
		r.AddWorkerConn(w)
		r.RegisterWorker(w)
	}
	r.RemoveWorker(b)

	var order []*Worker
	r.EachWorker(func(w *Worker) { order = append(order, w) })
	if len(order) != 2 || order[0] != a || order[1] != c {
		t.Errorf("unexpected order after removal: %v", order)
	}
	if r.WorkerCount() != 2 {
		t.Errorf("unexpected count: %v", r.WorkerCount())
	}
}
