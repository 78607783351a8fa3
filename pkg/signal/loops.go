package signal

import (
	"time"

	"github.com/droidstream/signal/pkg/api"
)

// matchTick runs one matching pass: expire stale queue entries, then pair
// queued clients to available workers in strict FIFO order. Greedy,
// single-pass, first-fit; no priority beyond arrival order.
func (h *Hub) matchTick(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// snapshot first: expiring or pairing mutates the live queue
	order := h.queue.Snapshot()

	var expired []*Client
	for _, id := range order {
		if c := h.registry.Client(id); c != nil && c.queueExpired(now, h.conf.QueueTimeout) {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		c.SendError(api.NoWorkersAvailable, "No workers became available in time. Please try again later.")
		h.disconnectClient(c, "queue_timeout")
	}

	matched := 0
	for _, id := range order {
		c := h.registry.Client(id)
		if c == nil || c.state != Queued || c.game == "" {
			continue
		}
		w := h.registry.FindAvailableWorker(c.game)
		if w == nil {
			continue
		}
		h.queue.Remove(c.id)
		h.pair(c, w)
		c.SendQueueReady()
		matched++
	}

	// positions shifted, re-report them to everyone still waiting
	if matched > 0 || len(expired) > 0 {
		total := h.queue.Len()
		for _, id := range h.queue.Snapshot() {
			if c := h.registry.Client(id); c != nil {
				c.SendQueueInfo(h.queue.Position(id), total)
			}
		}
	}

	h.metrics.observe(h.registry, h.queue)
}

// heartbeatTick pings every session and evicts the stale ones. Victims are
// snapshotted before any disconnect: evicting a worker cascades into its
// paired client inside the same pass, and mutating the registry while
// ranging over it is unsafe.
func (h *Hub) heartbeatTick(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.EachClient(func(c *Client) { c.SendPing() })
	h.registry.EachWorkerConn(func(w *Worker) { w.SendPing() })

	var deadWorkers []*Worker
	h.registry.EachWorkerConn(func(w *Worker) {
		if w.pingExpired(now, h.conf.PingTimeout) {
			deadWorkers = append(deadWorkers, w)
		}
	})

	var deadPing, deadInput, deadConnecting, deadSession []*Client
	h.registry.EachClient(func(c *Client) {
		switch {
		case c.pingExpired(now, h.conf.PingTimeout):
			deadPing = append(deadPing, c)
		case c.inputExpired(now, h.conf.InputTimeout):
			deadInput = append(deadInput, c)
		case c.connectingExpired(now, h.conf.ConnectingTimeout):
			deadConnecting = append(deadConnecting, c)
		case c.sessionExpired(now, h.conf.MaxSessionTime):
			deadSession = append(deadSession, c)
		}
	})

	for _, w := range deadWorkers {
		h.disconnectWorker(w, "ping_timeout")
	}
	for _, c := range deadPing {
		h.disconnectClient(c, "ping_timeout")
	}
	for _, c := range deadInput {
		c.SendError(api.SessionTimeout, "Session ended due to inactivity.")
		h.disconnectClient(c, "input_timeout")
	}
	for _, c := range deadConnecting {
		c.SendError(api.ConnectionTimeout, "Connection timeout - please try again.")
		h.disconnectClient(c, "connecting_timeout")
	}
	for _, c := range deadSession {
		c.SendError(api.SessionTimeout, "Session time limit reached.")
		h.disconnectClient(c, "session_limit")
	}

	h.metrics.observe(h.registry, h.queue)
}
