package signal

import (
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/auth"
)

// handleClientMessage runs under the hub lock.
func (h *Hub) handleClientMessage(c *Client, in api.In) {
	switch in.T {
	case api.Pong:
		// liveness already refreshed by the dispatcher
	case api.ClientInput:
		c.lastInput = h.now()
	case api.Queue:
		h.handleQueue(c, api.Unwrap[api.QueueRequest](in.Raw))
	case api.Start:
		h.handleStart(c)
	case api.Answer, api.IceCandidate:
		// negotiation payloads pass through untouched
		if c.worker != nil {
			c.worker.Relay(in.Raw)
		}
	default:
		// unknown types are discarded for forward compatibility,
		// they already counted toward liveness
		c.log.Debug().Msgf("Discarding unknown message %q", in.T)
	}
}

func (h *Hub) handleQueue(c *Client, rq *api.QueueRequest) {
	if rq == nil || rq.AppId == "" {
		c.SendError(api.InvalidRequest, "No game specified in queue request")
		return
	}

	// a client re-queueing over a live assignment abandons its worker;
	// the worker is torn down, not recycled
	if w := c.worker; w != nil {
		c.worker = nil
		w.client = nil
		c.state = Waiting
		c.assignedAt = time.Time{}
		h.disconnectWorker(w, "client_requeued")
	}

	// already queued: just update the game and re-report the position
	if c.state == Queued {
		c.game = rq.AppId
		c.SendQueueInfo(h.queue.Position(c.id), h.queue.Len())
		return
	}

	// one queue slot and one game per external user across sessions
	if h.registry.UserQueued(c.userId, c) {
		c.SendError(api.AlreadyInQueue, "You are already in the queue")
		return
	}
	if h.registry.UserInGame(c.userId, c) {
		c.SendError(api.AlreadyInGame, "You are already in a game")
		return
	}

	c.game = rq.AppId
	c.videoSize = h.clampVideoSize(c.access, rq.MaxVideoSize)
	c.state = Queued
	c.queuedAt = h.now()
	h.queue.Push(c.id)
	c.SendQueueInfo(h.queue.Position(c.id), h.queue.Len())
	c.log.Info().Msgf("Queued for %v (video size %v)", c.game, c.videoSize)
}

func (h *Hub) handleStart(c *Client) {
	// re-sent START while connected is a no-op
	if c.state == Connected {
		c.log.Debug().Msg("Duplicate START ignored")
		return
	}
	if c.worker == nil {
		c.SendError(api.NoWorkersAvailable, "No worker assigned. Please rejoin the queue.")
		h.disconnectClient(c, "no_worker")
		return
	}
	if c.game == "" {
		c.SendError(api.InvalidRequest, "No game selected. Please rejoin the queue.")
		h.disconnectClient(c, "no_game")
		return
	}
	c.state = Connected
	c.worker.SendStart(c.userId, c.videoSize, c.ice)
	c.worker.SendGameSelected(c.game)
	c.log.Info().Msgf("Started session with worker %v", c.worker.id.Short())
}

// clampVideoSize keeps free-access clients on the free tier cap even if
// they ask for more.
func (h *Hub) clampVideoSize(access auth.AccessType, requested int) int {
	if access != auth.Paid || requested <= 0 {
		return h.conf.FreeMaxVideoSize
	}
	return requested
}
