package signal

import "github.com/droidstream/signal/pkg/network"

// Registry holds the lookup tables for live sessions: by generated id and
// by transport handle. It owns no business logic; all mutation happens
// under the hub lock.
//
// A worker has a handle entry from the moment it connects but an id entry
// only after it declares its game catalog, which keeps unregistered
// workers out of matching.
type Registry struct {
	clients     map[network.Uid]*Client
	workers     map[network.Uid]*Worker
	clientConns map[Transport]*Client
	workerConns map[Transport]*Worker

	// insertion order of registered workers, for deterministic first-fit
	workerOrder []network.Uid
}

func NewRegistry() *Registry {
	return &Registry{
		clients:     make(map[network.Uid]*Client, 16),
		workers:     make(map[network.Uid]*Worker, 16),
		clientConns: make(map[Transport]*Client, 16),
		workerConns: make(map[Transport]*Worker, 16),
	}
}

func (r *Registry) AddClient(c *Client) {
	r.clients[c.id] = c
	r.clientConns[c.conn] = c
}

func (r *Registry) RemoveClient(c *Client) {
	delete(r.clients, c.id)
	delete(r.clientConns, c.conn)
}

func (r *Registry) Client(id network.Uid) *Client { return r.clients[id] }

func (r *Registry) ClientByConn(t Transport) *Client { return r.clientConns[t] }

// AddWorkerConn tracks a connected but not yet registered worker.
func (r *Registry) AddWorkerConn(w *Worker) { r.workerConns[w.conn] = w }

// RegisterWorker admits the worker to the matchable registry.
func (r *Registry) RegisterWorker(w *Worker) {
	if _, ok := r.workers[w.id]; !ok {
		r.workerOrder = append(r.workerOrder, w.id)
	}
	r.workers[w.id] = w
}

func (r *Registry) RemoveWorker(w *Worker) {
	if _, ok := r.workers[w.id]; ok {
		delete(r.workers, w.id)
		for i, id := range r.workerOrder {
			if id == w.id {
				r.workerOrder = append(r.workerOrder[:i], r.workerOrder[i+1:]...)
				break
			}
		}
	}
	delete(r.workerConns, w.conn)
}

func (r *Registry) Worker(id network.Uid) *Worker { return r.workers[id] }

func (r *Registry) WorkerByConn(t Transport) *Worker { return r.workerConns[t] }

// FindAvailableWorker returns the first available worker supporting the
// game, in registration order. First-fit, not load-balanced: with mixed
// game catalogs an early generalist can be claimed by a game a later
// specialist could have served.
func (r *Registry) FindAvailableWorker(game string) *Worker {
	if game == "" {
		return nil
	}
	for _, id := range r.workerOrder {
		w := r.workers[id]
		if w != nil && w.status == Available && w.Supports(game) {
			return w
		}
	}
	return nil
}

func (r *Registry) EachClient(fn func(c *Client)) {
	for _, c := range r.clients {
		fn(c)
	}
}

func (r *Registry) EachWorker(fn func(w *Worker)) {
	for _, id := range r.workerOrder {
		if w := r.workers[id]; w != nil {
			fn(w)
		}
	}
}

// EachWorkerConn visits every connected worker, registered or not.
func (r *Registry) EachWorkerConn(fn func(w *Worker)) {
	for _, w := range r.workerConns {
		fn(w)
	}
}

// UserQueued reports whether another live session of the same external
// user already waits in the queue.
func (r *Registry) UserQueued(userId string, except *Client) bool {
	for _, c := range r.clients {
		if c != except && c.userId == userId && c.state == Queued {
			return true
		}
	}
	return false
}

// UserInGame reports whether another live session of the same external
// user already holds a worker.
func (r *Registry) UserInGame(userId string, except *Client) bool {
	for _, c := range r.clients {
		if c != except && c.userId == userId && c.worker != nil {
			return true
		}
	}
	return false
}

func (r *Registry) ClientCount() int { return len(r.clients) }
func (r *Registry) WorkerCount() int { return len(r.workers) }
