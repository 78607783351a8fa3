package signal

import (
	"context"
	"sync"
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/turn"
)

// Hub is the connection broker: it owns the registry and the queue, and it
// serializes every state mutation. Message handlers and the periodic loops
// all run to completion under one lock, so no two mutations of the same
// pairing can ever interleave.
type Hub struct {
	conf config.Broker
	auth auth.Authenticator
	turn turn.Issuer
	log  *logger.Logger

	mu       sync.Mutex
	registry *Registry
	queue    *Queue

	now     func() time.Time
	done    chan struct{}
	metrics *metrics
}

func NewHub(conf config.Broker, authn auth.Authenticator, issuer turn.Issuer, log *logger.Logger) *Hub {
	return &Hub{
		conf:     conf,
		auth:     authn,
		turn:     issuer,
		log:      log,
		registry: NewRegistry(),
		queue:    NewQueue(),
		now:      time.Now,
		done:     make(chan struct{}),
		metrics:  getMetrics(),
	}
}

// ConnectClient admits an authorized client session.
func (h *Hub) ConnectClient(conn Transport, usr auth.User) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := NewClient(conn, usr, h.now(), h.log)
	h.registry.AddClient(c)
	c.SendAuthenticated()
	c.log.Info().Msgf("Client connected (user: %v)", usr.Id)
	return c
}

// ConnectWorker tracks a worker connection until it registers its games.
func (h *Hub) ConnectWorker(conn Transport) *Worker {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := NewWorker(conn, h.now(), h.log)
	h.registry.AddWorkerConn(w)
	w.log.Info().Msg("Worker connected (awaiting registration)")
	return w
}

// HandleClientData dispatches one inbound client message. The session is
// resolved through the handle map on every message: a handler racing a
// teardown sees no session and drops the message.
func (h *Hub) HandleClientData(conn Transport, data []byte) {
	in, err := api.Decode(data)
	if err != nil {
		h.log.Warn().Err(err).Msg("client sent an invalid message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.registry.ClientByConn(conn)
	if c == nil || c.closed {
		return
	}
	// any inbound message counts toward liveness
	c.lastPing = h.now()
	h.handleClientMessage(c, in)
}

// HandleWorkerData dispatches one inbound worker message.
func (h *Hub) HandleWorkerData(conn Transport, data []byte) {
	in, err := api.Decode(data)
	if err != nil {
		h.log.Warn().Err(err).Msg("worker sent an invalid message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.registry.WorkerByConn(conn)
	if w == nil || w.closed {
		return
	}
	w.lastPing = h.now()
	h.handleWorkerMessage(w, in)
}

// DisconnectClient tears the client session down (transport close path).
func (h *Hub) DisconnectClient(c *Client, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectClient(c, reason)
}

// DisconnectWorker tears the worker session down (transport close path).
func (h *Hub) DisconnectWorker(w *Worker, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectWorker(w, reason)
}

// pair links both sides of a pairing in one place, so asymmetric state is
// structurally impossible. The worker turns busy synchronously and is
// ineligible for the rest of the matching pass.
func (h *Hub) pair(c *Client, w *Worker) {
	c.worker = w
	w.client = c
	w.status = Busy
	c.state = Connecting
	c.assignedAt = h.now()
	c.ice = h.turn.IceServers()
	c.log.Info().Msgf("Assigned to worker %v", w.id.Short())
}

// disconnectClient runs the client teardown under the hub lock. Idempotent:
// the transport close event racing a timeout sweep folds into one pass.
func (h *Hub) disconnectClient(c *Client, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.log.Info().Msgf("Client disconnecting: %v", reason)

	if c.state == Queued {
		h.queue.Remove(c.id)
	}

	// unlink both sides before cascading, so the worker teardown
	// can't call back into this half-cleaned session
	if w := c.worker; w != nil {
		c.worker = nil
		w.client = nil
		w.SendClientDisconnected()
		h.disconnectWorker(w, "client_disconnected")
	}

	c.state = Disconnected
	h.registry.RemoveClient(c)

	c.SendShutdown(reason)
	c.conn.Close()
}

// disconnectWorker mirrors the client teardown. A worker is never recycled:
// released means gone, a fresh process replaces it.
func (h *Hub) disconnectWorker(w *Worker, reason string) {
	if w.closed {
		return
	}
	w.closed = true
	w.log.Info().Msgf("Worker disconnecting: %v", reason)

	if c := w.client; c != nil {
		w.client = nil
		c.worker = nil
		c.SendWorkerDisconnected()
		h.disconnectClient(c, "worker_disconnected")
	}

	h.registry.RemoveWorker(w)

	w.SendShutdown(reason)
	w.conn.Close()
}

// Run starts the matching and heartbeat loops.
func (h *Hub) Run() {
	go h.loop(h.conf.MatchInterval, h.matchTick)
	go h.loop(h.conf.PingInterval, h.heartbeatTick)
}

func (h *Hub) loop(interval time.Duration, tick func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tick(h.now())
		case <-h.done:
			return
		}
	}
}

// Shutdown stops the loops and tears down every live session.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	var clients []*Client
	var workers []*Worker
	h.registry.EachClient(func(c *Client) { clients = append(clients, c) })
	h.registry.EachWorkerConn(func(w *Worker) { workers = append(workers, w) })
	for _, c := range clients {
		h.disconnectClient(c, "server_shutdown")
	}
	for _, w := range workers {
		h.disconnectWorker(w, "server_shutdown")
	}
	return nil
}

func (h *Hub) String() string { return "hub" }
